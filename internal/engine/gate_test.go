package engine

import (
	"errors"
	"testing"

	"github.com/quizdrive/quizdrive-backend/internal/model"
)

func TestCheckAccessUnrestricted(t *testing.T) {
	exam := &model.Exam{Restricted: false}

	tests := []struct {
		name      string
		id        Identity
		wantField string
	}{
		{"valid name and phone", Identity{Name: "Ana", Phone: "0812"}, ""},
		{"missing name", Identity{Phone: "0812"}, "name"},
		{"blank name", Identity{Name: "   ", Phone: "0812"}, "name"},
		{"missing phone", Identity{Name: "Ana"}, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAccess(exam, tt.id)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestCheckAccessRestricted(t *testing.T) {
	exam := &model.Exam{
		Restricted: true,
		AllowList:  []string{"user@example.com"},
	}

	tests := []struct {
		name       string
		email      string
		wantReason DenyReason
	}{
		{"exact match", "user@example.com", ""},
		{"trimmed and lower-cased", "  USER@Example.com ", ""},
		{"not on allow-list", "other@x.com", DenyNotAuthorized},
		{"empty email", "", DenyMissingEmail},
		{"whitespace-only email", "   ", DenyMissingEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAccess(exam, Identity{Email: tt.email})
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			var denied *AccessDeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("expected AccessDeniedError, got %v", err)
			}
			if denied.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", denied.Reason, tt.wantReason)
			}
		})
	}
}

func TestCheckAccessAllowListNormalizedAtMatch(t *testing.T) {
	// Entries written with stray formatting still match a clean candidate.
	exam := &model.Exam{
		Restricted: true,
		AllowList:  []string{" User@Example.COM "},
	}
	if err := CheckAccess(exam, Identity{Email: "user@example.com"}); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}
