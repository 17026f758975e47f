package source

import (
	"errors"
	"fmt"
	"net/http"
)

/*
Errors returned by content sources. Decode failures are layer.DecodeError.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrNotFound is returned when a named resource is absent. A 404 StatusError
// also matches it.
var ErrNotFound = errors.New("resource not found")

// TransportError is returned when a request could not be completed at the
// network level. It unwraps to the cause, so context cancellation remains
// detectable with errors.Is.
type TransportError struct {
	URL string
	Err error
}

// Error returns a string representation of the error.
func (e TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err)
}

// Unwrap returns the cause.
func (e TransportError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is a TransportError.
func (e TransportError) Is(target error) bool {
	_, ok := target.(TransportError)
	return ok
}

// StatusError is returned when a server answers with a non-success status.
type StatusError struct {
	URL    string
	Code   int
	Detail string
}

// Error returns a string representation of the error.
func (e StatusError) Error() string {
	msg := fmt.Sprintf("%s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is returns true if the target is a StatusError, or is ErrNotFound and the
// status was 404.
func (e StatusError) Is(target error) bool {
	if target == ErrNotFound { //nolint:errorlint
		return e.Code == http.StatusNotFound
	}
	_, ok := target.(StatusError)
	return ok
}
