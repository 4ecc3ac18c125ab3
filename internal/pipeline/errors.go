package pipeline

import "fmt"

// ConfigError reports invalid pipeline assembly: duplicate stage keys in a
// parallel group, a zero concurrency budget, and similar construction-time
// mistakes. It is always surfaced before any document is processed.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline config: %s", e.Reason)
}

// NewConfigError builds a ConfigError from a format string.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// InputError reports a missing or unusable document at the pipeline
// boundary. It aborts the run before any stage executes.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("pipeline input: %s", e.Reason)
}

// NewInputError builds an InputError from a format string.
func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}
