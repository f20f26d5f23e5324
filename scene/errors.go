package scene

import (
	"fmt"

	"github.com/pkg/errors"
)

type entityNotFoundError struct {
	id string
}

func (e *entityNotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", e.id)
}

// NewEntityNotFoundError is returned when an id names no object or text box in the store.
func NewEntityNotFoundError(id string) error {
	return &entityNotFoundError{id: id}
}

// IsEntityNotFoundError reports whether err, or anything it wraps, is a not found error.
func IsEntityNotFoundError(err error) bool {
	var nf *entityNotFoundError
	return errors.As(err, &nf)
}

// NewEntityExistsError is returned when placing an object under an id already in use.
func NewEntityExistsError(id string) error {
	return errors.Errorf("entity %q already exists", id)
}
