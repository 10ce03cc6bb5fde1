package flight

import (
	"context"

	"github.com/jonwraymond/callgate/keys"
)

// Role is a caller's part in a call.
type Role int

const (
	// Leader runs the computation and settles the call.
	Leader Role = iota
	// Follower waits for the leader's outcome.
	Follower
)

func (r Role) String() string {
	if r == Leader {
		return "leader"
	}
	return "follower"
}

// Call is one in-flight computation.
type Call[V any] struct {
	key       keys.CallKey
	done      chan struct{}
	followers int
	settled   bool

	val V
	err error
}

// Key returns the call's key.
func (c *Call[V]) Key() keys.CallKey {
	return c.key
}

// Done is closed once the call is settled.
func (c *Call[V]) Done() <-chan struct{} {
	return c.done
}

// Followers returns how many callers joined after the leader.
// It must be read under the owner's lock.
func (c *Call[V]) Followers() int {
	return c.followers
}

// Wait blocks until the call settles or ctx ends. Cancelling ctx abandons
// only this wait; the leader and other followers are unaffected.
func (c *Call[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Result returns the settled outcome. It must only be called after Done is
// closed.
func (c *Call[V]) Result() (V, error) {
	return c.val, c.err
}

// Group is the table of in-flight calls.
type Group[V any] struct {
	calls map[string]*Call[V]
}

// NewGroup creates an empty Group.
func NewGroup[V any]() *Group[V] {
	return &Group[V]{calls: make(map[string]*Call[V])}
}

// Join returns the in-flight call for key, creating it if needed.
// The creator is the Leader; everyone else is a Follower.
func (g *Group[V]) Join(key keys.CallKey) (*Call[V], Role) {
	if c, ok := g.calls[key.Canonical]; ok {
		c.followers++
		return c, Follower
	}
	c := &Call[V]{key: key, done: make(chan struct{})}
	g.calls[key.Canonical] = c
	return c, Leader
}

// Pending reports whether key has an in-flight call.
func (g *Group[V]) Pending(key keys.CallKey) bool {
	_, ok := g.calls[key.Canonical]
	return ok
}

// Len returns the number of in-flight calls.
func (g *Group[V]) Len() int {
	return len(g.calls)
}

// Settle records the outcome, removes c from the table and releases its
// followers. Settling a call twice is a no-op.
func (g *Group[V]) Settle(c *Call[V], val V, err error) {
	if c.settled {
		return
	}
	c.settled = true
	c.val, c.err = val, err
	if g.calls[c.key.Canonical] == c {
		delete(g.calls, c.key.Canonical)
	}
	close(c.done)
}
