package bandit

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every ConfigError so callers can test for
// the whole class with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrInvariant marks a defect: state that a correct implementation can never
// produce. It is never recovered from.
var ErrInvariant = errors.New("invariant violation")

// ConfigError reports a configuration problem detected before any round runs.
type ConfigError struct {
	// Field is the configuration key at fault (e.g. "rounds", "strategy.epsilon").
	Field string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match any ConfigError.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError is shorthand for a *ConfigError with a formatted reason.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// invariantf builds an error wrapping ErrInvariant.
func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
