package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an absent blob or row.
	ErrNotFound = errors.New("not found")
	// ErrUnknownKind reports an entity kind that is not registered.
	ErrUnknownKind = errors.New("unknown kind")
)

// IOError reports that the storage medium behind a blob store or ledger failed.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("storage: %v", e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapIO wraps err as an IOError unless it is nil, already an IOError, or a not-found.
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Err: err}
}

// SourceError reports a producer-side fetch failure. These are transient and retried
// by paginated runs.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err wraps an IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
