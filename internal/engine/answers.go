package engine

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Answer is the stored response for one question.
//
// Single questions hold a one-element Selected list, multiple questions a
// toggled (duplicate-free) Selected set, and compound questions a Parts slice
// aligned to the question's parts with nil marking an unanswered part.
type Answer struct {
	Selected []int  `json:"selected,omitempty"`
	Parts    []*int `json:"parts,omitempty"`
}

// Sheet is the answer store for one session: question ID → Answer.
// It carries no behavior beyond merge and clear; callers are responsible for
// serializing access (the owning session does this).
type Sheet struct {
	answers map[uuid.UUID]Answer
}

// NewSheet returns an empty answer sheet.
func NewSheet() *Sheet {
	return &Sheet{answers: make(map[uuid.UUID]Answer)}
}

// SetSingle records the sole selected option for a single-type question,
// replacing any previous selection.
func (s *Sheet) SetSingle(qid uuid.UUID, option int) {
	s.answers[qid] = Answer{Selected: []int{option}}
}

// Toggle flips an option's membership for a multiple-type question. Options
// are toggled, never appended, so duplicates are impossible.
func (s *Sheet) Toggle(qid uuid.UUID, option int) {
	a := s.answers[qid]
	for i, sel := range a.Selected {
		if sel == option {
			a.Selected = append(a.Selected[:i], a.Selected[i+1:]...)
			s.answers[qid] = a
			return
		}
	}
	a.Selected = append(a.Selected, option)
	s.answers[qid] = a
}

// SetPart records the selected option for one part of a compound question.
// The Parts slice is sized to partCount so unanswered parts stay nil.
func (s *Sheet) SetPart(qid uuid.UUID, part, option, partCount int) {
	a := s.answers[qid]
	if len(a.Parts) != partCount {
		parts := make([]*int, partCount)
		copy(parts, a.Parts)
		a.Parts = parts
	}
	if part < 0 || part >= partCount {
		return
	}
	v := option
	a.Parts[part] = &v
	s.answers[qid] = a
}

// Get returns the stored answer for a question, if any.
func (s *Sheet) Get(qid uuid.UUID) (Answer, bool) {
	a, ok := s.answers[qid]
	return a, ok
}

// Len reports how many questions have a stored answer.
func (s *Sheet) Len() int { return len(s.answers) }

// Clear drops every stored answer.
func (s *Sheet) Clear() {
	s.answers = make(map[uuid.UUID]Answer)
}

// Merge copies answers from other into s, overwriting on collision.
func (s *Sheet) Merge(other *Sheet) {
	for qid, a := range other.answers {
		s.answers[qid] = cloneAnswer(a)
	}
}

// Snapshot returns a deep copy of the sheet's contents keyed by question ID.
func (s *Sheet) Snapshot() map[uuid.UUID]Answer {
	out := make(map[uuid.UUID]Answer, len(s.answers))
	for qid, a := range s.answers {
		out[qid] = cloneAnswer(a)
	}
	return out
}

// MarshalJSON encodes the sheet as an object keyed by question ID string.
func (s *Sheet) MarshalJSON() ([]byte, error) {
	out := make(map[string]Answer, len(s.answers))
	for qid, a := range s.answers {
		out[qid.String()] = a
	}
	return json.Marshal(out)
}

func cloneAnswer(a Answer) Answer {
	c := Answer{}
	if a.Selected != nil {
		c.Selected = append([]int(nil), a.Selected...)
	}
	if a.Parts != nil {
		c.Parts = make([]*int, len(a.Parts))
		for i, p := range a.Parts {
			if p != nil {
				v := *p
				c.Parts[i] = &v
			}
		}
	}
	return c
}
