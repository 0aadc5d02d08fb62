// Package exitcode attaches process exit statuses to errors.
package exitcode

import (
	"errors"
	"fmt"
)

const (
	OK      = 0
	Failure = 1
	Usage   = 2
)

// Error carries the exit status the process should terminate with.
// It satisfies kong's ExitCoder.
type Error struct {
	Code int
	Err  error
}

// Wrap returns err with the given exit code attached. A nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) ExitCode() int {
	return e.Code
}

// From returns the exit status for err: OK for nil, the attached code for an
// Error anywhere in the chain, Failure otherwise.
func From(err error) int {
	if err == nil {
		return OK
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return Failure
}
