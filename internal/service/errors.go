package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/campushq/campus-backend/internal/response"
)

// RejectionKind classifies why a submission or lifecycle operation was
// refused. Every kind maps onto a stable wire error code so clients can
// branch on the reason without parsing messages.
type RejectionKind string

const (
	KindWindowClosed        RejectionKind = "WINDOW_CLOSED"
	KindAlreadySubmitted    RejectionKind = "ALREADY_SUBMITTED"
	KindAttemptsExhausted   RejectionKind = "ATTEMPTS_EXHAUSTED"
	KindConstraintViolation RejectionKind = "CONSTRAINT_VIOLATION"
	KindNotEligible         RejectionKind = "NOT_ELIGIBLE"
	KindConflictingUpdate   RejectionKind = "CONFLICTING_UPDATE"
	KindInvalidGrade        RejectionKind = "INVALID_GRADE"
	KindInvalidTransition   RejectionKind = "INVALID_TRANSITION"
)

// Rejection is a recoverable domain failure. It is expected during normal
// operation (closed windows, spent attempt budgets) and is distinct from
// infrastructure errors, which are wrapped and propagated as-is.
type Rejection struct {
	Kind   RejectionKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

func reject(kind RejectionKind, format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// WireError maps a rejection kind onto the HTTP status and response code
// the handlers emit.
func (r *Rejection) WireError() (int, response.ErrCode) {
	switch r.Kind {
	case KindWindowClosed:
		return http.StatusConflict, response.ErrWindowClosed
	case KindAlreadySubmitted:
		return http.StatusConflict, response.ErrAlreadySubmitted
	case KindAttemptsExhausted:
		return http.StatusConflict, response.ErrAttemptsExhausted
	case KindConstraintViolation:
		return http.StatusUnprocessableEntity, response.ErrConstraintViolation
	case KindNotEligible:
		return http.StatusForbidden, response.ErrNotEligible
	case KindConflictingUpdate:
		return http.StatusConflict, response.ErrConflictingUpdate
	case KindInvalidGrade:
		return http.StatusUnprocessableEntity, response.ErrInvalidGrade
	case KindInvalidTransition:
		return http.StatusConflict, response.ErrInvalidTransition
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
