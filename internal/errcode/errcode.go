// Package errcode classifies failures into the categories reported by the
// rawhttp command and maps each category to a process exit status.
package errcode

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
)

// Code is a failure category. The declaration order is significant: the exit
// status of a code is its ordinal plus one.
type Code int

const (
	// BadUsage is a command line or configuration mistake.
	BadUsage Code = iota
	// InvalidHTTPRequest is request or response text that does not parse.
	InvalidHTTPRequest
	// UnexpectedError is any failure without a better category.
	UnexpectedError
	// IOException is a failed file, socket or terminal operation.
	IOException
)

var names = [...]string{
	BadUsage:           "BAD_USAGE",
	InvalidHTTPRequest: "INVALID_HTTP_REQUEST",
	UnexpectedError:    "UNEXPECTED_ERROR",
	IOException:        "IO_EXCEPTION",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(names) {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return names[c]
}

// ExitStatus returns the process exit status for c: 1, 2, 3 and 4 for
// BadUsage, InvalidHTTPRequest, UnexpectedError and IOException.
func (c Code) ExitStatus() int {
	return 1 + int(c)
}

// Error attaches a Code to an underlying error.
type Error struct {
	Code Code
	Err  error
}

// New wraps err with code. A nil err yields nil.
func New(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Errorf is shorthand for New(code, fmt.Errorf(format, args...)).
func Errorf(code Code, format string, args ...any) error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf reports the category of err. Errors carrying an explicit Code keep
// it; filesystem and network errors are IOException; anything else is
// UnexpectedError.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	var (
		pathErr *os.PathError
		netErr  net.Error
	)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return IOException
	case errors.As(err, &pathErr), errors.As(err, &netErr):
		return IOException
	}

	return UnexpectedError
}
