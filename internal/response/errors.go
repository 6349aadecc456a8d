package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication / Authorization ────────────────────────────────
	ErrTokenRequired         ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid          ErrCode = "TOKEN_INVALID"
	ErrForbidden             ErrCode = "FORBIDDEN"
	ErrParticipantAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrInstructorAccessOnly  ErrCode = "INSTRUCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Submission engine ─────────────────────────────────────────────
	ErrWindowClosed        ErrCode = "WINDOW_CLOSED"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrAttemptsExhausted   ErrCode = "ATTEMPTS_EXHAUSTED"
	ErrConstraintViolation ErrCode = "CONSTRAINT_VIOLATION"
	ErrNotEligible         ErrCode = "NOT_ELIGIBLE"
	ErrConflictingUpdate   ErrCode = "CONFLICTING_UPDATE"
	ErrInvalidGrade        ErrCode = "INVALID_GRADE"
	ErrInvalidTransition   ErrCode = "INVALID_TRANSITION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal          ErrCode = "INTERNAL_ERROR"
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication / Authorization ────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrParticipantAccessOnly:
		return "This resource is restricted to participants."
	case ErrInstructorAccessOnly:
		return "This resource is restricted to instructors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Submission engine ─────────────────────────────────────────────
	case ErrWindowClosed:
		return "The submission window is closed."
	case ErrAlreadySubmitted:
		return "This has already been submitted."
	case ErrAttemptsExhausted:
		return "The maximum number of attempts has been reached."
	case ErrConstraintViolation:
		return "A device, network or location constraint was not satisfied."
	case ErrNotEligible:
		return "You are not eligible for this session."
	case ErrConflictingUpdate:
		return "A concurrent update was detected. Please retry."
	case ErrInvalidGrade:
		return "The grade is outside the allowed range."
	case ErrInvalidTransition:
		return "This state transition is not allowed."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	default:
		return "An unexpected error occurred."
	}
}
