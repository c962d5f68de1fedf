//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
)

// Registration writes the participant and the session row in one
// transaction. A failed attempt must leave no participant behind, so a
// retry never orphans rows.
func TestRegistrationPersistenceAtomic(t *testing.T) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pool connect: %v", err)
	}
	defer pool.Close()

	var organizerID int
	if err := pool.QueryRow(ctx,
		`SELECT id FROM organizers WHERE email = $1`, organizerEmail,
	).Scan(&organizerID); err != nil {
		t.Fatalf("seed organizer missing: %v", err)
	}

	var examID uuid.UUID
	if err := pool.QueryRow(ctx,
		`INSERT INTO exams (title, organizer_id, duration_minutes, status)
		 VALUES ('Atomicity Exam', $1, 5, 'PUBLISHED')
		 RETURNING id`, organizerID,
	).Scan(&examID); err != nil {
		t.Fatalf("insert exam: %v", err)
	}

	sessionRepo := repository.NewSessionRepository(pool)
	const markerEmail = "atomicity-marker@example.com"

	t.Run("FailedSessionInsertLeavesNoParticipant", func(t *testing.T) {
		p := &model.Participant{ExamID: examID, Email: markerEmail}
		row := &model.ExamSession{
			ID:     uuid.New(),
			ExamID: uuid.New(), // No such exam; the session insert violates its FK.
		}

		if err := sessionRepo.CreateWithParticipant(ctx, p, row); err == nil {
			t.Fatal("expected FK violation, got nil")
		}

		var count int
		if err := pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM participants WHERE email = $1`, markerEmail,
		).Scan(&count); err != nil {
			t.Fatalf("count participants: %v", err)
		}
		if count != 0 {
			t.Errorf("found %d orphaned participant rows, want 0", count)
		}
	})

	t.Run("SuccessfulRegistrationWritesBothRows", func(t *testing.T) {
		p := &model.Participant{ExamID: examID, Email: markerEmail}
		row := &model.ExamSession{
			ID:     uuid.New(),
			ExamID: examID,
		}

		if err := sessionRepo.CreateWithParticipant(ctx, p, row); err != nil {
			t.Fatalf("CreateWithParticipant: %v", err)
		}
		if p.ID == uuid.Nil {
			t.Error("participant ID not returned")
		}
		if row.ParticipantID != p.ID {
			t.Errorf("session participant = %v, want %v", row.ParticipantID, p.ID)
		}
		if row.StartedAt.IsZero() {
			t.Error("session started_at not returned")
		}

		var status string
		if err := pool.QueryRow(ctx,
			`SELECT status FROM exam_sessions WHERE id = $1`, row.ID,
		).Scan(&status); err != nil {
			t.Fatalf("session row missing: %v", err)
		}
		if status != string(model.SessionStatusInProgress) {
			t.Errorf("status = %s, want %s", status, model.SessionStatusInProgress)
		}
	})
}
