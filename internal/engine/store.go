package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
)

// Store is the persistence collaborator consumed by the session engine.
// The engine performs exactly one participant write and one result write per
// session; everything else it needs is handed to it at construction.
type Store interface {
	// CreateParticipant persists the registered identity for a session and
	// returns the new participant's ID.
	CreateParticipant(ctx context.Context, sessionID uuid.UUID, exam *model.Exam, id Identity) (uuid.UUID, error)

	// SaveResult hands the finalized result to persistence. A failure here is
	// surfaced as a warning; the session still completes.
	SaveResult(ctx context.Context, res *model.Result) error
}
