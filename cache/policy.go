package cache

import (
	"fmt"
	"time"
)

// Policy bounds the contents of a Store.
type Policy struct {
	// MaxSize is the maximum number of entries. Zero means unbounded.
	MaxSize int

	// MaxAge is how long an entry stays valid after it is stored.
	// Zero means entries never expire.
	MaxAge time.Duration
}

// DefaultPolicy returns an unbounded policy whose entries never expire.
func DefaultPolicy() Policy {
	return Policy{}
}

// Validate rejects negative bounds.
func (p Policy) Validate() error {
	if p.MaxSize < 0 {
		return fmt.Errorf("%w: negative max size %d", ErrInvalidPolicy, p.MaxSize)
	}
	if p.MaxAge < 0 {
		return fmt.Errorf("%w: negative max age %s", ErrInvalidPolicy, p.MaxAge)
	}
	return nil
}

// Bounded reports whether the policy limits the entry count.
func (p Policy) Bounded() bool {
	return p.MaxSize > 0
}

// Expires reports whether entries age out.
func (p Policy) Expires() bool {
	return p.MaxAge > 0
}

// Expired reports whether an entry created at created is past MaxAge at now.
func (p Policy) Expired(created, now time.Time) bool {
	return p.Expires() && now.Sub(created) > p.MaxAge
}
