package referenceframe

import "github.com/pkg/errors"

// NewNonFiniteTransformError returns an error indicating that a transform has a NaN or infinite component.
func NewNonFiniteTransformError(t Transform) error {
	return errors.Errorf("transform %v has non-finite components", t)
}

// NewUnknownAxisError returns an error indicating that a string does not name an axis.
func NewUnknownAxisError(name string) error {
	return errors.Errorf("unknown axis %q, expected one of x, y or z", name)
}
