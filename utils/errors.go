package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// UncheckedError is used in places where we really do not care about an error but we
// want to at least report it. Never use this for closing writers.
func UncheckedError(err error) {
	UncheckedErrorFunc(func() error { return err })
}

// UncheckedErrorFunc is used in places where we really do not care about an error but we
// want to at least report it. Never use this for closing writers.
func UncheckedErrorFunc(f func() error) {
	//nolint:errcheck
	f()
}

// NewConfigValidationError returns a config validation error at the given path.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

// NewConfigValidationFieldRequiredError returns an error for a required field missing at path.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}
