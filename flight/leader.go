package flight

import (
	"context"
	"runtime/debug"

	"github.com/jonwraymond/callgate/keys"
)

type leaderKey struct{}

type leaderMark struct {
	owner  any
	key    string
	parent *leaderMark
}

// WithLeader marks ctx as running the computation for key on behalf of
// owner. Marks accumulate, so nested leaders are all visible.
func WithLeader(ctx context.Context, owner any, key keys.CallKey) context.Context {
	parent, _ := ctx.Value(leaderKey{}).(*leaderMark)
	return context.WithValue(ctx, leaderKey{}, &leaderMark{owner: owner, key: key.Canonical, parent: parent})
}

// IsLeader reports whether ctx descends from the leader of key for owner.
func IsLeader(ctx context.Context, owner any, key keys.CallKey) bool {
	m, _ := ctx.Value(leaderKey{}).(*leaderMark)
	for ; m != nil; m = m.parent {
		if m.owner == owner && m.key == key.Canonical {
			return true
		}
	}
	return false
}

// Result is what a leader's computation produced.
type Result[V any] struct {
	Value V
	Err   error
	// Panic is set when the computation panicked; Err then holds a
	// *PanicError.
	Panic *PanicError
}

// Run executes fn as the leader of key. The context passed to fn is marked
// with WithLeader. A panic in fn is recovered into Result.Panic so the
// caller can settle followers before re-raising it.
func Run[V any](ctx context.Context, owner any, key keys.CallKey, fn func(context.Context) (V, error)) (res Result[V]) {
	defer func() {
		if r := recover(); r != nil {
			res.Panic = &PanicError{Value: r, Stack: debug.Stack()}
			res.Err = res.Panic
		}
	}()
	res.Value, res.Err = fn(WithLeader(ctx, owner, key))
	return res
}
