package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates persisted exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// ExamSession is the persisted row for one participant's run through an exam.
type ExamSession struct {
	ID            uuid.UUID     `json:"id"`
	ExamID        uuid.UUID     `json:"exam_id"`
	ParticipantID uuid.UUID     `json:"participant_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Status        SessionStatus `json:"status"`
	FinalScore    *int          `json:"final_score,omitempty"`
	Percentage    *int          `json:"percentage,omitempty"`
}

// SessionState is the reload snapshot returned to a participant mid-exam.
type SessionState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	State            string            `json:"state"`
	QuestionIndex    int               `json:"question_index"`
	SessionRemaining int               `json:"session_remaining_seconds"`
	QuestionRemaining int              `json:"question_remaining_seconds"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
}
