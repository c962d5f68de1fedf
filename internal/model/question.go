package model

import (
	"github.com/google/uuid"
)

// QuestionType distinguishes the three scoring shapes.
type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "SINGLE"
	QuestionTypeMultiple QuestionType = "MULTIPLE"
	QuestionTypeCompound QuestionType = "COMPOUND"
)

// DefaultQuestionSeconds is the per-question time limit applied when an
// organizer does not supply one.
const DefaultQuestionSeconds = 30

// Question represents a single exam question.
//
// TimeLimitSeconds semantics: nil means the authoring default
// (DefaultQuestionSeconds); an explicit 0 disables the question timer
// entirely, leaving the question on manual advance only.
type Question struct {
	ID             uuid.UUID    `json:"id"`
	ExamID         uuid.UUID    `json:"exam_id"`
	Prompt         string       `json:"prompt"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options,omitempty"`
	CorrectIndices []int        `json:"correct_indices,omitempty"`
	Parts          []QuestionPart `json:"parts,omitempty"`
	TimeLimitSeconds *int       `json:"time_limit_seconds,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
	MediaRef       string       `json:"media_ref,omitempty"`
	// MediaDurationSeconds paces live/replay mode when no explicit limit
	// governs the item.
	MediaDurationSeconds int `json:"media_duration_seconds,omitempty"`
	OrderNum             int `json:"order_num"`
}

// QuestionPart is one independently scored part of a compound question.
type QuestionPart struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// TimerSeconds returns the effective question-timer duration.
// A zero return means the timer stays dormant for this question.
func (q *Question) TimerSeconds() int {
	if q.TimeLimitSeconds == nil {
		return DefaultQuestionSeconds
	}
	if *q.TimeLimitSeconds <= 0 {
		return 0
	}
	return *q.TimeLimitSeconds
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Prompt           string               `json:"prompt" binding:"required,min=1,max=2000"`
	Type             string               `json:"type" binding:"required,oneof=SINGLE MULTIPLE COMPOUND"`
	Options          []string             `json:"options" binding:"omitempty,min=2,dive,required"`
	CorrectIndices   []int                `json:"correct_indices" binding:"omitempty,min=1"`
	Parts            []AddQuestionPart    `json:"parts" binding:"omitempty,min=1,dive"`
	TimeLimitSeconds *int                 `json:"time_limit_seconds" binding:"omitempty,min=0,max=3600"`
	Explanation      string               `json:"explanation" binding:"omitempty,max=4000"`
	MediaRef         string               `json:"media_ref" binding:"omitempty,max=512"`
	MediaDurationSeconds int              `json:"media_duration_seconds" binding:"omitempty,min=0,max=7200"`
	OrderNum         int                  `json:"order_num" binding:"min=0"`
}

// AddQuestionPart is one part within an AddQuestionRequest for compound questions.
type AddQuestionPart struct {
	Prompt       string   `json:"prompt" binding:"required,min=1,max=2000"`
	Options      []string `json:"options" binding:"required,min=2,dive,required"`
	CorrectIndex int      `json:"correct_index" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
