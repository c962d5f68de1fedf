package service

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
)

func intPtr(v int) *int { return &v }

func TestBuildQuestionValidation(t *testing.T) {
	examID := uuid.New()

	tests := []struct {
		name    string
		req     model.AddQuestionRequest
		wantErr string
	}{
		{
			name: "valid single",
			req: model.AddQuestionRequest{
				Prompt:         "2+2?",
				Type:           "SINGLE",
				Options:        []string{"3", "4"},
				CorrectIndices: []int{1},
			},
		},
		{
			name: "valid multiple",
			req: model.AddQuestionRequest{
				Prompt:         "primes?",
				Type:           "MULTIPLE",
				Options:        []string{"2", "3", "4"},
				CorrectIndices: []int{0, 1},
			},
		},
		{
			name: "single with two correct indices",
			req: model.AddQuestionRequest{
				Prompt:         "p",
				Type:           "SINGLE",
				Options:        []string{"a", "b"},
				CorrectIndices: []int{0, 1},
			},
			wantErr: "exactly one correct index",
		},
		{
			name: "multiple with duplicate correct index",
			req: model.AddQuestionRequest{
				Prompt:         "p",
				Type:           "MULTIPLE",
				Options:        []string{"a", "b", "c"},
				CorrectIndices: []int{0, 0},
			},
			wantErr: "duplicate correct index",
		},
		{
			name: "multiple with out-of-range index",
			req: model.AddQuestionRequest{
				Prompt:         "p",
				Type:           "MULTIPLE",
				Options:        []string{"a", "b"},
				CorrectIndices: []int{2},
			},
			wantErr: "out of range",
		},
		{
			name: "too few options",
			req: model.AddQuestionRequest{
				Prompt:         "p",
				Type:           "SINGLE",
				Options:        []string{"a"},
				CorrectIndices: []int{0},
			},
			wantErr: "at least 2 options",
		},
		{
			name: "compound without parts",
			req: model.AddQuestionRequest{
				Prompt: "p",
				Type:   "COMPOUND",
			},
			wantErr: "at least one part",
		},
		{
			name: "compound part index out of range",
			req: model.AddQuestionRequest{
				Prompt: "p",
				Type:   "COMPOUND",
				Parts: []model.AddQuestionPart{
					{Prompt: "p1", Options: []string{"a", "b"}, CorrectIndex: 2},
				},
			},
			wantErr: "out of range",
		},
		{
			name: "valid with explicit zero time limit",
			req: model.AddQuestionRequest{
				Prompt:           "p",
				Type:             "SINGLE",
				Options:          []string{"a", "b"},
				CorrectIndices:   []int{0},
				TimeLimitSeconds: intPtr(0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := buildQuestion(examID, 0, &tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("buildQuestion() error = %v, want nil", err)
				}
				if q.ExamID != examID {
					t.Errorf("ExamID = %v, want %v", q.ExamID, examID)
				}
				return
			}
			if err == nil {
				t.Fatalf("buildQuestion() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("buildQuestion() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestReplaceQuestionsErrorCarriesIndex(t *testing.T) {
	verr := &QuestionValidationError{Index: 2, Reason: "duplicate correct index"}
	if got := verr.Error(); !strings.Contains(got, "question 2") {
		t.Errorf("Error() = %q, want question index included", got)
	}
	fields := verr.Fields()
	if _, ok := fields["questions[2]"]; !ok {
		t.Errorf("Fields() = %v, want questions[2] key", fields)
	}
}
