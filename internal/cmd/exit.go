package cmd

import (
	"errors"
	"fmt"
)

// exitGateFailed is the exit code of a run whose verdict is fail.
const exitGateFailed = 1

// exitErr carries the process exit code for a failed command.
type exitErr struct {
	code    int
	message string
	err     error
}

func (e *exitErr) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s (exit code %d)", e.message, e.code)
	}
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *exitErr) Unwrap() error {
	return e.err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &exitErr{code: code, message: message, err: err}
}

// ExitCode returns the exit code carried by err. Errors without one, such
// as flag parse failures, exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *exitErr
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}
