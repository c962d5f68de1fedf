package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an organizer-authored exam template.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	OrganizerID     int       `json:"organizer_id"`
	DurationMinutes int       `json:"duration_minutes"`
	// Restricted gates registration by email allow-list. When false,
	// participants register with name + phone instead.
	Restricted bool       `json:"restricted"`
	AllowList  []string   `json:"allow_list,omitempty"`
	Status     ExamStatus `json:"status"`
	Questions  []Question `json:"questions,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string   `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=1,max=480"`
	Restricted      bool     `json:"restricted"`
	AllowList       []string `json:"allow_list" binding:"omitempty,dive,email"`
}

// UpdateAllowListRequest replaces the allow-list of a restricted exam.
// Allowed between sessions only; entries are normalized at write time.
type UpdateAllowListRequest struct {
	AllowList []string `json:"allow_list" binding:"required,dive,email"`
}

// ExamPayload is the Redis-cached payload sent to participants (no correct answers).
type ExamPayload struct {
	ExamID     uuid.UUID                `json:"exam_id"`
	Title      string                   `json:"title"`
	Duration   int                      `json:"duration_minutes"`
	Restricted bool                     `json:"restricted"`
	Questions  []QuestionForParticipant `json:"questions"`
}

// QuestionForParticipant is a question stripped of its correct indices.
type QuestionForParticipant struct {
	ID               uuid.UUID            `json:"id"`
	Prompt           string               `json:"prompt"`
	Type             QuestionType         `json:"type"`
	Options          []string             `json:"options,omitempty"`
	Parts            []PartForParticipant `json:"parts,omitempty"`
	TimeLimitSeconds *int                 `json:"time_limit_seconds,omitempty"`
	Explanation      string               `json:"explanation,omitempty"`
	MediaRef         string               `json:"media_ref,omitempty"`
	OrderNum         int                  `json:"order_num"`
}

// PartForParticipant is a compound part stripped of its correct index.
type PartForParticipant struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}
