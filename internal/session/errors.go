package session

import (
	"errors"
	"fmt"
)

// ValidationError is a local precondition failure. The gateway is never called.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteCallError wraps a failed gateway operation.
type RemoteCallError struct {
	Op  string
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s failed: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRemote reports whether err is, or wraps, a RemoteCallError.
func IsRemote(err error) bool {
	var re *RemoteCallError
	return errors.As(err, &re)
}

func remoteErr(op string, err error) error {
	return &RemoteCallError{Op: op, Err: err}
}
