package soltest

import (
	"errors"
	"fmt"
)

// ConfigError is an invalid run configuration, detected before any
// subprocess is spawned, such as a malformed batch, an unknown network
// or a missing dependency directory.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(err error) *ConfigError {
	return &ConfigError{Err: err}
}

// IsConfigError checks if the error is or wraps a ConfigError
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return err != nil && errors.As(err, &configErr)
}

// NoSuitesError is returned when discovery leaves nothing to run.
type NoSuitesError struct {
	SuitesDir  string
	AllowTests []string
}

func (e *NoSuitesError) Error() string {
	if len(e.AllowTests) > 0 {
		return fmt.Sprintf("no tests found or all invalid in %s (allowed: %v)", e.SuitesDir, e.AllowTests)
	}
	return fmt.Sprintf("no tests found or all invalid in %s", e.SuitesDir)
}

// IsNoSuitesError checks if the error is or wraps a NoSuitesError
func IsNoSuitesError(err error) bool {
	var noSuitesErr *NoSuitesError
	return err != nil && errors.As(err, &noSuitesErr)
}

// BootstrapError is a failure to bring up the live node. It wraps
// supervisor.ErrStartupTimeout or a *supervisor.SpawnError.
type BootstrapError struct {
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("node bootstrap failed: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// IsBootstrapError checks if the error is or wraps a BootstrapError
func IsBootstrapError(err error) bool {
	var bootstrapErr *BootstrapError
	return err != nil && errors.As(err, &bootstrapErr)
}

// SuiteFailureError identifies the suite that stopped the run.
type SuiteFailureError struct {
	Suite    string
	ExitCode int
}

func (e *SuiteFailureError) Error() string {
	return fmt.Sprintf("test suite %s failed with exit code %d", e.Suite, e.ExitCode)
}

// IsSuiteFailureError checks if the error is or wraps a SuiteFailureError
func IsSuiteFailureError(err error) bool {
	var suiteErr *SuiteFailureError
	return err != nil && errors.As(err, &suiteErr)
}
