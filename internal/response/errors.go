package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrOrganizerOnly     ErrCode = "ORGANIZER_ACCESS_ONLY"
	ErrSessionTokenScope ErrCode = "SESSION_TOKEN_SCOPE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam authoring ────────────────────────────────────────────────
	ErrNotExamOwner     ErrCode = "NOT_EXAM_OWNER"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrExamNotDraft     ErrCode = "EXAM_NOT_DRAFT"
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"

	// ─── Session & gate ────────────────────────────────────────────────
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionState       ErrCode = "SESSION_STATE"
	ErrRegistrationFields ErrCode = "REGISTRATION_FIELDS"
	ErrEmailRequired      ErrCode = "EMAIL_REQUIRED"
	ErrAccessDenied       ErrCode = "ACCESS_DENIED"
	ErrRegistrationRetry  ErrCode = "REGISTRATION_RETRY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrOrganizerOnly:
		return "This resource is restricted to organizers."
	case ErrSessionTokenScope:
		return "This token is not valid for the requested session."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam authoring ────────────────────────────────────────────────
	case ErrNotExamOwner:
		return "You are not the owner of this exam."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrExamNotDraft:
		return "This exam is not in DRAFT status."
	case ErrExamNotPublished:
		return "This exam has not been published."

	// ─── Session & gate ────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "No active session found for this ID."
	case ErrSessionState:
		return "This action is not allowed in the session's current state."
	case ErrRegistrationFields:
		return "Registration details are missing or invalid."
	case ErrEmailRequired:
		return "An email address is required to register for this exam."
	case ErrAccessDenied:
		return "This email is not authorized to take this exam."
	case ErrRegistrationRetry:
		return "Registration could not be saved. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
