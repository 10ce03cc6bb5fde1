package memo

import "errors"

// Sentinel errors for memoizers.
var (
	// ErrNilFunc is returned by New when no function is given.
	ErrNilFunc = errors.New("memo: nil function")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("memo: closed")

	// ErrMissingName is returned when DefaultStore is used without a Name
	// to derive the journal location from.
	ErrMissingName = errors.New("memo: name is required for the default store")
)
