package types

import (
	"errors"
	"fmt"
)

// Domain errors shared across components
var (
	// ErrConfiguration marks startup-time problems with the intent catalog or the
	// persisted index. Callers must abort initialization when they see it.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyInput is reported when an operation that needs text gets only
	// whitespace. Chat answers blank messages with a prompt instead.
	ErrEmptyInput = errors.New("empty input")
)

// ConfigurationErrorf builds an error wrapping ErrConfiguration
func ConfigurationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
