package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Result is the write-once record produced when a session completes.
// The engine never mutates it afterward.
type Result struct {
	SessionID      uuid.UUID       `json:"session_id"`
	ExamID         uuid.UUID       `json:"exam_id"`
	ParticipantID  uuid.UUID       `json:"participant_id"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	Percentage     int             `json:"percentage"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	Answers        json.RawMessage `json:"answers"`
	CompletedAt    time.Time       `json:"completed_at"`
}
