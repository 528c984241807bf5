package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("conflict")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrSessionExpired       = errors.New("session expired")
	ErrIncompleteSelection  = errors.New("checkout selection incomplete")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrSubmissionInProgress = errors.New("order submission in progress")
	ErrRemoteUnavailable    = errors.New("remote unavailable")
)

// RemoteError is a non-2xx answer from the backend. Kind holds the taxonomy
// member the status maps to, so errors.Is works against the sentinels.
type RemoteError struct {
	Status  int
	Message string
	Details []string
	Kind    error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote status %d", e.Status)
	}
	return fmt.Sprintf("remote status %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Kind
}

// KindForStatus classifies a backend HTTP status.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrSessionExpired
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusConflict:
		return ErrConflict
	case status >= 500:
		return ErrRemoteUnavailable
	default:
		return nil
	}
}

// Validation wraps a local validation failure.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error from the core onto the status the gateway returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrIncompleteSelection),
		errors.Is(err, ErrSubmissionInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	}

	var remote *RemoteError
	if errors.As(err, &remote) && remote.Status >= 400 && remote.Status < 500 {
		return remote.Status
	}
	return http.StatusInternalServerError
}
