package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error taxonomy for the admission layer. Callers match with errors.Is.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrRateLimited      = errors.New("rate limited")
	ErrValidationFailed = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Refined errors. Their text is safe to return to clients.
var (
	ErrAPIKeyRequired         = fmt.Errorf("%w: API key required", ErrUnauthenticated)
	ErrInvalidAPIKey          = fmt.Errorf("%w: Invalid API key", ErrUnauthenticated)
	ErrInvalidCredentials     = fmt.Errorf("%w: Invalid credentials", ErrUnauthenticated)
	ErrKeyInactive            = fmt.Errorf("%w: API key is inactive", ErrForbidden)
	ErrKeyExpired             = fmt.Errorf("%w: API key has expired", ErrForbidden)
	ErrInsufficientPermission = fmt.Errorf("%w: Insufficient permissions", ErrForbidden)
	ErrAccountDisabled        = fmt.Errorf("%w: Account is disabled", ErrForbidden)
)

// ValidationError describes malformed input. It matches ErrValidationFailed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// storeError hides a collaborator failure behind ErrStoreUnavailable while
// keeping the cause available to errors.Is/As for logging.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return e.op + ": " + ErrStoreUnavailable.Error() }

func (e *storeError) Unwrap() []error { return []error{ErrStoreUnavailable, e.err} }

func unavailable(op string, err error) error {
	return &storeError{op: op, err: err}
}

// HTTPStatus maps an error from this package onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing text for err. Store and unknown
// failures collapse to fallback so no internal detail leaks.
func PublicMessage(err error, fallback string) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrStoreUnavailable):
		return fallback
	}
	for _, known := range []error{
		ErrAPIKeyRequired, ErrInvalidAPIKey, ErrInvalidCredentials,
		ErrKeyInactive, ErrKeyExpired, ErrInsufficientPermission, ErrAccountDisabled,
	} {
		if errors.Is(err, known) {
			return trimKind(known)
		}
	}
	return fallback
}

// trimKind strips the "kind: " prefix added by the refined errors.
func trimKind(err error) string {
	_, msg, _ := strings.Cut(err.Error(), ": ")
	return msg
}
