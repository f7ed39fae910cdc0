package errs

import (
	"errors"
	"fmt"
)

// Domain error kinds returned by the annotation store.
//
// They are sentinels: callers test them with errors.Is, and the store wraps
// them with context (and, for storage failures, the driver error) using %w.
var (
	// ErrInvalidInput is a missing or invalid required field. It is always
	// raised before anything is sent to the database.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the row does not exist or is not visible to the caller.
	// The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedValueType is raised when a stored value_type is outside
	// the recognized kinds.
	ErrUnsupportedValueType = errors.New("unsupported value type")

	// ErrStorage wraps any failure of the underlying persistence, including
	// value interning.
	ErrStorage = errors.New("storage failure")
)

// Storage wraps err as an ErrStorage for operation op.
// The driver error stays reachable through errors.As.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Invalid builds an ErrInvalidInput with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// FromKind converts a domain error kind into its HTTP shape.
// It returns nil when err carries none of the kinds above.
func FromKind(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ValidationError(err)
	case errors.Is(err, ErrNotFound):
		code := "ANNOTATION_NOT_FOUND"
		return NewNotFoundError("Annotation not found", true, &code)
	case errors.Is(err, ErrUnsupportedValueType):
		e := NewInternalServerError()
		e.Code = "UNSUPPORTED_VALUE_TYPE"
		return e
	}
	return nil
}
