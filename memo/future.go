package memo

import (
	"context"
	"runtime/debug"

	"github.com/jonwraymond/callgate/flight"
	"github.com/jonwraymond/callgate/keys"
)

// Future is the pending outcome of Go.
type Future[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Go starts Call in a new goroutine and returns immediately. A panic in
// the computation is delivered as a *flight.PanicError, and a
// runtime.Goexit as flight.ErrAbandoned.
func (m *Memoizer[V]) Go(ctx context.Context, args keys.Args) *Future[V] {
	f := &Future[V]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		returned := false
		defer func() {
			if r := recover(); r != nil {
				pe, ok := r.(*flight.PanicError)
				if !ok {
					pe = &flight.PanicError{Value: r, Stack: debug.Stack()}
				}
				f.err = pe
			} else if !returned {
				f.err = flight.ErrAbandoned
			}
		}()
		f.val, f.err = m.Call(ctx, args)
		returned = true
	}()
	return f
}

// Done is closed when the outcome is available.
func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the outcome. Cancelling ctx abandons the wait but not
// the call.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
