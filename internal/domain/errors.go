package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyQuerySet is returned when no query could be discovered at startup.
var ErrEmptyQuerySet = errors.New("no queries found")

// LoadError reports a query source that could not be read or parsed.
type LoadError struct {
	Err    error
	Source string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load queries from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ConnectionError reports that every reconnect attempt failed.
type ConnectionError struct {
	Err      error
	Attempts int
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect to database after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError is a failure local to one statement; the connection stays usable.
type StatementError struct {
	Err error
	SQL string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement failed: %v", e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// TransportError means the connection died while a statement was running.
type TransportError struct {
	Err error
	SQL string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DispatchWarning describes a sample that was not submitted.
type DispatchWarning struct {
	Err    error
	Key    string
	Reason string
}

func (w *DispatchWarning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("dispatch %s: %s: %v", w.Key, w.Reason, w.Err)
	}
	return fmt.Sprintf("dispatch %s: %s", w.Key, w.Reason)
}

func (w *DispatchWarning) Unwrap() error { return w.Err }

// IsFatal reports whether err must stop the polling loop.
func IsFatal(err error) bool {
	var ce *ConnectionError
	var te *TransportError
	return errors.As(err, &ce) || errors.As(err, &te)
}
