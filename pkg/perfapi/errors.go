package perfapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for API operations.
var (
	// ErrNotFound indicates the test or snapshot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrThrottled indicates the request was rate limited by the service.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the service could not be reached or failed.
	ErrUnavailable = errors.New("service unavailable")

	// ErrUnexpectedStatus indicates any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrMalformedResponse indicates a 200 response that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError wraps a failed API call with context.
type APIError struct {
	// Op is the operation that failed (e.g., "FetchJob").
	Op string

	// Status is the HTTP status code, zero for transport errors.
	Status int

	// Message is the service's error message, if it sent one.
	Message string

	// Err is one of the sentinel errors above.
	Err error

	// Cause is the transport or decode error, if any.
	Cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Op + ": "
	if e.Status != 0 {
		msg += fmt.Sprintf("Server returned %d (%s)", e.Status, http.StatusText(e.Status))
	} else {
		msg += e.Err.Error()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the cause for errors.Is/As support.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// statusError maps a non-200 status to an APIError.
func statusError(op string, status int, message string) *APIError {
	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case status == http.StatusTooManyRequests:
		sentinel = ErrThrottled
	case status >= 500:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrUnexpectedStatus
	}
	return &APIError{Op: op, Status: status, Message: message, Err: sentinel}
}

// IsNotFound returns true if the error indicates a missing test or snapshot.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized returns true if the error indicates a rejected API key.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsUnavailable returns true if the error indicates the service is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// isRetryable reports whether an idempotent request may be repeated.
func isRetryable(err error) bool {
	return IsThrottled(err) || IsUnavailable(err)
}
