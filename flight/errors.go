package flight

import (
	"errors"
	"fmt"
)

// Sentinel errors for single-flight coordination.
var (
	// ErrReentrant is returned when a leader's computation calls back into
	// the same key, which would otherwise wait on itself forever.
	ErrReentrant = errors.New("flight: reentrant call for in-flight key")

	// ErrPanicked is wrapped by PanicError.
	ErrPanicked = errors.New("flight: computation panicked")

	// ErrAbandoned is returned to followers when the leader's goroutine
	// unwinds without producing a result, as with runtime.Goexit.
	ErrAbandoned = errors.New("flight: leader exited without a result")
)

// PanicError carries a leader panic to its followers.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("flight: computation panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrPanicked
}
