package service

import (
	"errors"
	"fmt"
)

var ErrNotInitialized = errors.New("recognizer is not initialized, call init first")

type ErrorKind string

const (
	// Bad language, missing models or engine that can not start
	KindConfiguration ErrorKind = "configuration"
	// Recognition requested before initialization
	KindNotInitialized ErrorKind = "not_initialized"
	// Uploaded data is not an image engine can read
	KindDecode   ErrorKind = "decode"
	KindInternal ErrorKind = "internal"
)

// Error returned by Service operations
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Returns kind of the error. Errors not produced by Service are internal.
func KindOf(err error) ErrorKind {
	var serviceError *Error
	if errors.As(err, &serviceError) {
		return serviceError.Kind
	}
	return KindInternal
}
