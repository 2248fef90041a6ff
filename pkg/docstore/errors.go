package docstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get and Update when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrTransient marks I/O failures that may succeed when retried.
	ErrTransient = errors.New("transient store error")
	// ErrAborted is returned when a transaction could not commit because of contention.
	ErrAborted = errors.New("transaction aborted")
)

type transientError struct {
	op  string
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

func transient(op string, err error) error {
	return &transientError{op: op, err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrAborted) || errors.Is(err, context.DeadlineExceeded)
}
