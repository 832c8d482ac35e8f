package types

import (
	"errors"
	"fmt"
)

// ConfigurationError represents a malformed or incomplete matrix
// configuration. It is fatal: the whole run aborts before any job
// executes, since a broken matrix cannot be partially trusted.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(err error) *ConfigurationError {
	return &ConfigurationError{Err: err}
}

// IsConfigurationError checks if the error is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return err != nil && errors.As(err, &cfgErr)
}

// EnvironmentUnavailableError indicates that a job's declared runtime/OS
// combination cannot be provisioned on this host. It turns into a Skipped
// job result, never a crash.
type EnvironmentUnavailableError struct {
	RuntimeVersion string
	OS             string
	Err            error
}

func (e *EnvironmentUnavailableError) Error() string {
	return fmt.Sprintf("environment unavailable for runtime %s on %s: %v", e.RuntimeVersion, e.OS, e.Err)
}

func (e *EnvironmentUnavailableError) Unwrap() error {
	return e.Err
}

// IsEnvironmentUnavailable checks if the error is or wraps an EnvironmentUnavailableError
func IsEnvironmentUnavailable(err error) bool {
	var envErr *EnvironmentUnavailableError
	return err != nil && errors.As(err, &envErr)
}
