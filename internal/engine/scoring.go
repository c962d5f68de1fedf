package engine

import (
	"math"
	"strings"

	"github.com/quizdrive/quizdrive-backend/internal/model"
)

// Score computes correctness for one question against its stored answer.
// Comparison is index-based throughout; no partial credit.
func Score(q *model.Question, ans Answer) bool {
	switch q.Type {
	case model.QuestionTypeSingle:
		// Exactly one selected option, equal to the one correct index.
		if len(ans.Selected) != 1 || len(q.CorrectIndices) != 1 {
			return false
		}
		return ans.Selected[0] == q.CorrectIndices[0]

	case model.QuestionTypeMultiple:
		// Set equality, order-independent.
		if len(ans.Selected) != len(q.CorrectIndices) {
			return false
		}
		correct := make(map[int]struct{}, len(q.CorrectIndices))
		for _, idx := range q.CorrectIndices {
			correct[idx] = struct{}{}
		}
		for _, sel := range ans.Selected {
			if _, ok := correct[sel]; !ok {
				return false
			}
		}
		return true

	case model.QuestionTypeCompound:
		// Conjunction over all parts; a missing part answer is incorrect.
		if len(q.Parts) == 0 || len(ans.Parts) != len(q.Parts) {
			return false
		}
		for i, part := range q.Parts {
			got := ans.Parts[i]
			if got == nil || *got != part.CorrectIndex {
				return false
			}
		}
		return true
	}
	return false
}

// TotalScore counts the fully-correct questions of an exam for a sheet.
func TotalScore(exam *model.Exam, sheet *Sheet) int {
	score := 0
	for i := range exam.Questions {
		q := &exam.Questions[i]
		ans, _ := sheet.Get(q.ID)
		if Score(q, ans) {
			score++
		}
	}
	return score
}

// Percentage converts a score into a rounded integer percentage.
// Defined as 0 when total is 0.
func Percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// TextEqual compares two answer values as text: both sides are trimmed and
// case-folded before comparison. Used only by flows that carry option text
// instead of indices; never mixed with index comparison.
func TextEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
