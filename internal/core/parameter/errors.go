// Package parameter defines domain-specific errors
package parameter

import "errors"

var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrTypeMismatch     = errors.New("value does not match parameter kind")
	ErrInvalidChoice    = errors.New("value is not one of the declared choices")
	ErrUnsupportedKind  = errors.New("parameter kind has no editor")
	ErrIndexOutOfRange  = errors.New("list index out of range")
)
