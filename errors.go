package matrixrun

import (
	"errors"
	"fmt"
)

// RuntimeError is an operational failure of the orchestrator itself
// (scheduler errors, filesystem problems, a panic during a run). It maps
// to exit code 2, keeping it distinguishable from a failing verdict.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError reports whether err is or wraps a RuntimeError.
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// RunFailureError represents a failing run verdict: one or more
// non-optional jobs failed or were skipped (exit code 1).
type RunFailureError struct {
	Message string
}

func (e *RunFailureError) Error() string {
	return fmt.Sprintf("run failure: %s", e.Message)
}

func NewRunFailureError(message string) *RunFailureError {
	return &RunFailureError{Message: message}
}

// IsRunFailureError reports whether err is or wraps a RunFailureError.
func IsRunFailureError(err error) bool {
	var runErr *RunFailureError
	return err != nil && errors.As(err, &runErr)
}
