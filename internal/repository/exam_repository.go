package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdrive/quizdrive-backend/internal/model"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam, its allow-list and its ordered questions.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, organizer_id, duration_minutes, restricted,
		        allow_list, status, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.OrganizerID, &e.DurationMinutes, &e.Restricted,
		&e.AllowList, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

// ListByOrganizer retrieves an organizer's exams without their questions.
func (r *ExamRepository) ListByOrganizer(ctx context.Context, organizerID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, organizer_id, duration_minutes, restricted,
		        allow_list, status, created_at, updated_at
		 FROM exams WHERE organizer_id = $1
		 ORDER BY created_at DESC`, organizerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.OrganizerID, &e.DurationMinutes, &e.Restricted,
			&e.AllowList, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListPublishedIDs returns the IDs of all published exams, used for cache
// prewarming at startup.
func (r *ExamRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exams WHERE status = $1`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new exam in DRAFT status.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, organizer_id, duration_minutes, restricted, allow_list, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.OrganizerID, e.DurationMinutes, e.Restricted, e.AllowList, model.ExamStatusDraft,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// UpdateStatus moves an exam between DRAFT/PUBLISHED/ARCHIVED.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateAllowList replaces the allow-list. Entries must already be
// normalized (trimmed, lower-cased) by the caller.
func (r *ExamRepository) UpdateAllowList(ctx context.Context, id uuid.UUID, allowList []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET allow_list = $1, updated_at = NOW() WHERE id = $2`, allowList, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ReplaceQuestions swaps the full question set of an exam in one transaction.
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	for i := range questions {
		q := &questions[i]
		parts, err := json.Marshal(q.Parts)
		if err != nil {
			return fmt.Errorf("marshal parts: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO questions
			   (exam_id, prompt, question_type, options, correct_indices, parts,
			    time_limit_seconds, explanation, media_ref, media_duration_seconds, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id`,
			examID, q.Prompt, q.Type, q.Options, q.CorrectIndices, parts,
			q.TimeLimitSeconds, q.Explanation, q.MediaRef, q.MediaDurationSeconds, q.OrderNum,
		).Scan(&q.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ExamRepository) listQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, prompt, question_type, options, correct_indices, parts,
		        time_limit_seconds, explanation, media_ref, media_duration_seconds, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var parts []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Prompt, &q.Type, &q.Options, &q.CorrectIndices, &parts,
			&q.TimeLimitSeconds, &q.Explanation, &q.MediaRef, &q.MediaDurationSeconds, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(parts) > 0 {
			if err := json.Unmarshal(parts, &q.Parts); err != nil {
				return nil, fmt.Errorf("unmarshal parts: %w", err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
