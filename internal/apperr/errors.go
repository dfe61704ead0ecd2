// Package apperr defines the error taxonomy shared by the booking engine.
// Callers wrap these sentinels with fmt.Errorf("%w: ...") and classify
// failures with errors.Is; handlers translate them into HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// ErrValidation marks bad input. It is never retried; the caller must fix
// the request and resubmit.
var ErrValidation = errors.New("validation error")

// ErrNotFound is returned when a referenced room, reservation or order
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrRoomConflict is returned when the requested room is no longer free
// for the requested interval.
var ErrRoomConflict = errors.New("room conflict")

// ErrNoRoomAvailable is returned by the allocator when no room of the
// requested type satisfies the stay.
var ErrNoRoomAvailable = errors.New("no room available")

// ErrInvalidStateTransition is returned when a status change is not in
// the transition table of the entity.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrPolicyViolation is returned when the operation is legal for the
// state but not for the actor or the current time (cutoffs, ownership).
var ErrPolicyViolation = errors.New("policy violation")

// ErrPaymentVerificationFailed is returned when the payment collaborator
// rejects or does not answer. No state has been committed.
var ErrPaymentVerificationFailed = errors.New("payment verification failed")

// ErrRefundProcessingFailed is returned when the refund collaborator
// rejects or does not answer. No state has been committed.
var ErrRefundProcessingFailed = errors.New("refund processing failed")

// ErrOrderExpired is returned when an unpaid order outlived its payment
// window. The order has been cancelled as a side effect.
var ErrOrderExpired = errors.New("order expired")

// ErrConsistencyRepair wraps failures of reconciliation repairs. These are
// logged and retried by the next sweep, never surfaced to a request.
var ErrConsistencyRepair = errors.New("consistency repair failure")

// Retryable reports whether the caller may retry the whole operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrPaymentVerificationFailed) ||
		errors.Is(err, ErrRefundProcessingFailed) ||
		errors.Is(err, ErrConsistencyRepair)
}

// HTTPStatus maps an error from the core to the status code handlers
// should respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomConflict), errors.Is(err, ErrNoRoomAvailable),
		errors.Is(err, ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrOrderExpired):
		return http.StatusGone
	case errors.Is(err, ErrPaymentVerificationFailed), errors.Is(err, ErrRefundProcessingFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
