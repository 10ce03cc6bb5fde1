package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for persistence.
var (
	// ErrCorrupt is returned when a journal record cannot be read back.
	ErrCorrupt = errors.New("store: journal is corrupt")

	// ErrWrite is returned when a record cannot be written.
	ErrWrite = errors.New("store: write failed")

	// ErrUnreachable is returned when the journal location cannot be opened.
	ErrUnreachable = errors.New("store: location unreachable")

	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("store: journal is closed")
)

// PersistenceError describes a failed journal operation.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RestoredError is a cached failure read back from a journal. Only the
// message survives a restart.
type RestoredError struct {
	Message string
}

func (e *RestoredError) Error() string {
	return e.Message
}
