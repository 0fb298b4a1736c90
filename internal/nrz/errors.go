package nrz

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a value cannot be encoded, such as a
	// byte outside 0..255.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFramingError is returned when a bit group or packet does not carry
	// the expected start, stop or marker bits.
	ErrFramingError = errors.New("framing error")
)

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func framingErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFramingError, fmt.Sprintf(format, args...))
}
