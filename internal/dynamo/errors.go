package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for relaxation runs.
var (
	// ErrInvalidConfig indicates a run configuration that cannot be simulated.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrIO indicates a scene or run file could not be written or read.
	ErrIO = errors.New("dynamo: i/o failure")

	// ErrUnstable indicates a particle position became NaN or Inf.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")
)

// ConfigError describes which configuration value was rejected.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s = %v: %s", ErrInvalidConfig, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ExportError wraps a failed filesystem operation on an output file.
type ExportError struct {
	Op   string
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrIO, e.Op, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

func (e *ExportError) Is(target error) bool { return target == ErrIO }

func invalid(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
