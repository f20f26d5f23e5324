package placement

import (
	"github.com/pkg/errors"
)

// NewGestureActiveError is returned when a gesture starts on an entity that is already mid-gesture.
func NewGestureActiveError(id string) error {
	return errors.Errorf("a gesture is already active for %q", id)
}

// NewNoGestureError is returned when a gesture update or end arrives for an entity that is not mid-gesture.
func NewNoGestureError(id string) error {
	return errors.Errorf("no gesture is active for %q", id)
}
