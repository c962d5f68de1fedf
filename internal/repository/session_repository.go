package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdrive/quizdrive-backend/internal/model"
)

// SessionResult combines participant identity with their session outcome,
// as listed for the organizer.
type SessionResult struct {
	SessionID     uuid.UUID           `json:"session_id"`
	ParticipantID uuid.UUID           `json:"participant_id"`
	Name          *string             `json:"name,omitempty"`
	Phone         *string             `json:"phone,omitempty"`
	Email         *string             `json:"email,omitempty"`
	FinalScore    *int                `json:"score"`
	Percentage    *int                `json:"percentage"`
	Status        model.SessionStatus `json:"status"`
	StartedAt     *time.Time          `json:"started_at"`
	FinishedAt    *time.Time          `json:"finished_at"`
}

// SessionRepository handles exam session and result data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateWithParticipant inserts the participant and the session row in one
// transaction. A failed registration must leave no rows behind, so the
// attempt stays retryable without orphaning participants.
func (r *SessionRepository) CreateWithParticipant(ctx context.Context, p *model.Participant, s *model.ExamSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO participants (exam_id, name, phone, email)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		 RETURNING id, created_at`,
		p.ExamID, p.Name, p.Phone, p.Email,
	).Scan(&p.ID, &p.CreatedAt); err != nil {
		return err
	}

	s.ParticipantID = p.ID
	if err := tx.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, exam_id, participant_id, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING started_at`,
		s.ID, s.ExamID, s.ParticipantID, model.SessionStatusInProgress,
	).Scan(&s.StartedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a session row.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, participant_id, started_at, finished_at, status, final_score, percentage
		 FROM exam_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.ExamID, &s.ParticipantID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.FinalScore, &s.Percentage)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CompleteWithResult marks a session completed and stores its result row.
// The write is transactional so a result never exists for an open session.
func (r *SessionRepository) CompleteWithResult(ctx context.Context, res *model.Result) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	answers := res.Answers
	if len(answers) == 0 {
		answers = json.RawMessage("{}")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, final_score = $2, percentage = $3, finished_at = $4
		 WHERE id = $5`,
		model.SessionStatusCompleted, res.Score, res.Percentage, res.CompletedAt, res.SessionID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO results
		   (session_id, exam_id, participant_id, score, total_questions,
		    percentage, elapsed_seconds, answers, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id) DO NOTHING`,
		res.SessionID, res.ExamID, res.ParticipantID, res.Score, res.TotalQuestions,
		res.Percentage, res.ElapsedSeconds, answers, res.CompletedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListResultsByExam retrieves paginated results for an exam, newest first.
func (r *SessionRepository) ListResultsByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]SessionResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT es.id, p.id, p.name, p.phone, p.email,
		        es.final_score, es.percentage, es.status, es.started_at, es.finished_at
		 FROM exam_sessions es
		 JOIN participants p ON es.participant_id = p.id
		 WHERE es.exam_id = $1
		 ORDER BY es.started_at DESC
		 LIMIT $2 OFFSET $3`, examID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var sr SessionResult
		if err := rows.Scan(&sr.SessionID, &sr.ParticipantID, &sr.Name, &sr.Phone, &sr.Email,
			&sr.FinalScore, &sr.Percentage, &sr.Status, &sr.StartedAt, &sr.FinishedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}
