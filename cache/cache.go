package cache

import (
	"errors"
	"time"

	"github.com/jonwraymond/callgate/keys"
)

// Sentinel errors for cache operations.
var (
	ErrInvalidPolicy = errors.New("cache: policy is invalid")
	ErrNilClock      = errors.New("cache: clock is nil")
)

// Outcome is the settled result of a call: a value or an error.
type Outcome[V any] struct {
	Value V
	Err   error
}

// Entry is a cached outcome together with its key and creation time.
type Entry[V any] struct {
	Key       keys.CallKey
	Outcome   Outcome[V]
	CreatedAt time.Time
}

// Reason explains why an entry left the store.
type Reason string

// Eviction reasons.
const (
	ReasonSize     Reason = "size"
	ReasonAge      Reason = "age"
	ReasonExplicit Reason = "explicit"
)

// Mirror observes store mutations.
//
// Contract:
//   - Calls happen synchronously, after the in-memory change, while the
//     store's owner holds its lock.
//   - An error never undoes the in-memory change; it is returned to the
//     caller of the mutating method.
type Mirror[V any] interface {
	Put(entry Entry[V]) error
	Evict(key keys.CallKey) error
	Reset() error
}
