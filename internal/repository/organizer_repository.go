package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdrive/quizdrive-backend/internal/model"
)

// OrganizerRepository handles organizer account data access.
type OrganizerRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizerRepository creates a new OrganizerRepository.
func NewOrganizerRepository(pool *pgxpool.Pool) *OrganizerRepository {
	return &OrganizerRepository{pool: pool}
}

// GetByID retrieves an organizer by ID.
func (r *OrganizerRepository) GetByID(ctx context.Context, id int) (*model.Organizer, error) {
	o := &model.Organizer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM organizers WHERE id = $1`, id,
	).Scan(&o.ID, &o.Email, &o.Name, &o.PasswordHash, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetByEmail retrieves an organizer by their unique email.
func (r *OrganizerRepository) GetByEmail(ctx context.Context, email string) (*model.Organizer, error) {
	o := &model.Organizer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM organizers WHERE email = $1`, email,
	).Scan(&o.ID, &o.Email, &o.Name, &o.PasswordHash, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts a new organizer account.
func (r *OrganizerRepository) Create(ctx context.Context, o *model.Organizer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO organizers (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		o.Email, o.Name, o.PasswordHash,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}
