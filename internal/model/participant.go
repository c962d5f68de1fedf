package model

import (
	"time"

	"github.com/google/uuid"
)

// Participant is the registered identity tied to a session. Depending on the
// exam's restriction flag it carries either name+phone or an email.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest is the payload for registering into an exam session.
// Which fields are required depends on the exam's restriction flag.
type RegisterRequest struct {
	Name  string `json:"name" binding:"omitempty,max=100"`
	Phone string `json:"phone" binding:"omitempty,max=30"`
	Email string `json:"email" binding:"omitempty,max=255"`
}
