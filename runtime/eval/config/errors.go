package config

import "fmt"

// ConfigError reports a missing or inconsistent reference detected at
// workflow assembly time: an unresolved prompt, agent or evaluator. It is
// fatal for the affected cell only.
type ConfigError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string { return e.Reason }

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
