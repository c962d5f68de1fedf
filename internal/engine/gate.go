package engine

import (
	"strings"

	"github.com/quizdrive/quizdrive-backend/internal/model"
)

// Identity is the candidate a participant registers with. Restricted exams
// use Email; unrestricted exams use Name + Phone.
type Identity struct {
	Name  string
	Phone string
	Email string
}

// NormalizeEmail trims surrounding whitespace and lower-cases an email so
// allow-list membership checks are insensitive to formatting.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckAccess is the access gate: a pure predicate over the exam's
// restriction policy and a candidate identity. It returns nil when the
// candidate may start a session, a *ValidationError for missing unrestricted
// fields, or an *AccessDeniedError with a distinct reason per rejection case.
func CheckAccess(exam *model.Exam, id Identity) error {
	if !exam.Restricted {
		if strings.TrimSpace(id.Name) == "" {
			return &ValidationError{Field: "name", Reason: "name is required"}
		}
		if strings.TrimSpace(id.Phone) == "" {
			return &ValidationError{Field: "phone", Reason: "phone is required"}
		}
		return nil
	}

	email := NormalizeEmail(id.Email)
	if email == "" {
		return &AccessDeniedError{Reason: DenyMissingEmail}
	}
	for _, allowed := range exam.AllowList {
		if NormalizeEmail(allowed) == email {
			return nil
		}
	}
	return &AccessDeniedError{Reason: DenyNotAuthorized}
}
