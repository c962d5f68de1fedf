package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/model"
)

func intp(v int) *int { return &v }

func TestScoreSingle(t *testing.T) {
	q := &model.Question{
		Type:           model.QuestionTypeSingle,
		Options:        []string{"A", "B"},
		CorrectIndices: []int{0},
	}

	tests := []struct {
		name string
		ans  Answer
		want bool
	}{
		{"correct", Answer{Selected: []int{0}}, true},
		{"wrong option", Answer{Selected: []int{1}}, false},
		{"no selection", Answer{}, false},
		{"two selections", Answer{Selected: []int{0, 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(q, tt.ans); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreMultiple(t *testing.T) {
	q := &model.Question{
		Type:           model.QuestionTypeMultiple,
		Options:        []string{"X", "Y", "Z"},
		CorrectIndices: []int{0, 2},
	}

	tests := []struct {
		name string
		ans  Answer
		want bool
	}{
		{"exact set", Answer{Selected: []int{0, 2}}, true},
		{"reordered selection", Answer{Selected: []int{2, 0}}, true},
		{"subset", Answer{Selected: []int{0}}, false},
		{"superset", Answer{Selected: []int{0, 1, 2}}, false},
		{"disjoint", Answer{Selected: []int{1}}, false},
		{"empty", Answer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(q, tt.ans); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}

	// Invariant under reordering the correct-index set too.
	q2 := &model.Question{
		Type:           model.QuestionTypeMultiple,
		Options:        q.Options,
		CorrectIndices: []int{2, 0},
	}
	if !Score(q2, Answer{Selected: []int{0, 2}}) {
		t.Error("score should not depend on correct-index order")
	}
}

func TestScoreCompound(t *testing.T) {
	q := &model.Question{
		Type: model.QuestionTypeCompound,
		Parts: []model.QuestionPart{
			{Prompt: "p1", Options: []string{"A", "B"}, CorrectIndex: 0},
			{Prompt: "p2", Options: []string{"C", "D"}, CorrectIndex: 1},
		},
	}

	tests := []struct {
		name string
		ans  Answer
		want bool
	}{
		{"all parts correct", Answer{Parts: []*int{intp(0), intp(1)}}, true},
		{"one part wrong", Answer{Parts: []*int{intp(0), intp(0)}}, false},
		{"one part missing", Answer{Parts: []*int{intp(0), nil}}, false},
		{"wrong arity", Answer{Parts: []*int{intp(0)}}, false},
		{"no answer", Answer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(q, tt.ans); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreCompoundSinglePart(t *testing.T) {
	q := &model.Question{
		Type: model.QuestionTypeCompound,
		Parts: []model.QuestionPart{
			{Options: []string{"A", "B"}, CorrectIndex: 0},
		},
	}
	if Score(q, Answer{Parts: []*int{intp(1)}}) {
		t.Error("answer [1] should score false")
	}
	if !Score(q, Answer{Parts: []*int{intp(0)}}) {
		t.Error("answer [0] should score true")
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{2, 2, 100},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{0, 7, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestTotalScoreTwoQuestionExam(t *testing.T) {
	q1 := uuid.New()
	q2 := uuid.New()
	exam := &model.Exam{
		Questions: []model.Question{
			{ID: q1, Type: model.QuestionTypeSingle, Options: []string{"A", "B"}, CorrectIndices: []int{0}},
			{ID: q2, Type: model.QuestionTypeMultiple, Options: []string{"X", "Y", "Z"}, CorrectIndices: []int{0, 2}},
		},
	}

	sheet := NewSheet()
	sheet.SetSingle(q1, 0)
	sheet.Toggle(q2, 0)
	sheet.Toggle(q2, 2)

	if got := TotalScore(exam, sheet); got != 2 {
		t.Fatalf("TotalScore = %d, want 2", got)
	}
	if got := Percentage(2, 2); got != 100 {
		t.Fatalf("Percentage = %d, want 100", got)
	}

	// Drop Q2 to a partial selection: no partial credit.
	sheet.Toggle(q2, 2)
	if got := TotalScore(exam, sheet); got != 1 {
		t.Fatalf("TotalScore after partial Q2 = %d, want 1", got)
	}
	if got := Percentage(1, 2); got != 50 {
		t.Fatalf("Percentage = %d, want 50", got)
	}

	// Re-computation from the same sheet is idempotent.
	if TotalScore(exam, sheet) != TotalScore(exam, sheet) {
		t.Error("TotalScore is not idempotent")
	}
}

func TestTextEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Paris", "  paris ", true},
		{"PARIS", "paris", true},
		{"paris", "london", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := TextEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("TextEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
