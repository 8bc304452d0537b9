package runner

import (
	"errors"
	"fmt"
)

// ConfigError is returned for any invalid configuration. It is raised before
// the run starts; nothing that happens during a run produces one.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field, reason string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(reason, args...)}
}

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
