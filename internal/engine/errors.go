package engine

import "fmt"

// ValidationError reports a missing or malformed registration field.
// It is non-fatal: the session stays in registration and the attempt can be
// retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// DenyReason identifies why the access gate rejected a candidate.
type DenyReason string

const (
	DenyMissingEmail  DenyReason = "MISSING_EMAIL"
	DenyNotAuthorized DenyReason = "NOT_AUTHORIZED"
)

// AccessDeniedError reports an access-gate rejection. The session moves to
// the terminal blocked state.
type AccessDeniedError struct {
	Reason DenyReason
}

func (e *AccessDeniedError) Error() string {
	switch e.Reason {
	case DenyMissingEmail:
		return "access denied: an email address is required for this exam"
	case DenyNotAuthorized:
		return "access denied: this email is not authorized for this exam"
	}
	return "access denied"
}

// StorageError wraps a persistence-collaborator failure. Save failures are
// non-fatal; only the initial exam fetch treats storage errors as fatal.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrSessionState is returned when an operation is attempted in a state that
// does not permit it (e.g. answering before start, completing twice).
type ErrSessionState struct {
	Op    string
	State State
}

func (e *ErrSessionState) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}
