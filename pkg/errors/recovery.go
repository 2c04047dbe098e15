// Package errors provides error handling utilities for the metrics engine and its driver.
//
// This file contains panic recovery used by the training driver around user
// hooks, so that a panicking training_step or callback surfaces as an error
// carrying the hook name and stack trace instead of tearing down the process.

package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error that was created from a recovered panic.
type PanicError struct {
	// Hook names the user hook that panicked, e.g. "training_step".
	Hook string

	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Hook, e.PanicValue)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s", e.Hook, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError for the given hook and panic value.
func NewPanicError(hook string, panicValue interface{}) *PanicError {
	return &PanicError{
		Hook:       hook,
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
	}
}

// Recover is used with defer to convert a panic inside a hook into an error.
//
// Usage:
//
//	func (t *Trainer) runStep() (err error) {
//	    defer Recover(&err, "training_step")
//	    ...
//	}
//
// If the function already returned an error, the panic is wrapped around it.
func Recover(err *error, hook string) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(hook, r)

		if *err != nil {
			*err = Wrapf(*err, "panic in %s: %v", hook, r)
			return
		}
		*err = panicErr
	}
}

// SafeExecute runs fn and converts any panic into a PanicError.
//
// Example:
//
//	err := SafeExecute("on_batch_end", func() error {
//	    return cb.OnBatchEnd(env)
//	})
func SafeExecute(hook string, fn func() error) (err error) {
	defer Recover(&err, hook)
	return fn()
}
