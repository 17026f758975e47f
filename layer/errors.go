package layer

import (
	"errors"
	"fmt"
)

/*
Errors returned by the layer package.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrInvalidNodesPerPage is returned by Validate when a layer declares a page
// capacity of zero.
var ErrInvalidNodesPerPage = errors.New("nodesPerPage must be positive")

// ErrMissingField is wrapped by decode errors for documents that omit a
// required field.
var ErrMissingField = errors.New("missing required field")

// ErrInvalidLength is wrapped by decode errors for fixed-size arrays of the
// wrong length.
var ErrInvalidLength = errors.New("invalid array length")

// DecodeError is returned when bytes are present but do not form the expected
// document. It covers malformed JSON, type mismatches, and (when raised by a
// content source) failed decompression.
type DecodeError struct {
	Resource string
	Err      error
}

// NewDecodeError wraps err as a decode failure of the named resource.
func NewDecodeError(resource string, err error) error {
	return DecodeError{Resource: resource, Err: err}
}

// Error returns a string representation of the error.
func (e DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %s", e.Resource, e.Err)
}

// Unwrap returns the underlying cause.
func (e DecodeError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is a DecodeError.
func (e DecodeError) Is(target error) bool {
	_, ok := target.(DecodeError)
	return ok
}
