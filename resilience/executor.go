package resilience

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// Executor composes a gate, retries and a per-attempt timeout.
type Executor struct {
	gate    *Gate
	retry   *Retry
	timeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithGate admits every execution through g.
func WithGate(g *Gate) ExecutorOption {
	return func(e *Executor) {
		e.gate = g
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout bounds each attempt to d. Non-positive values disable it.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// Execute runs the operation through all configured patterns.
//
// The execution order is:
// 1. Gate (if configured) - one admission covers all attempts
// 2. Retry (if configured) - retries on failure
// 3. Timeout (if configured) - limits each attempt
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if e.timeout > 0 {
		inner := execute
		execute = func(ctx context.Context) error {
			return ExecuteWithTimeout(ctx, e.timeout, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.gate != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.gate.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Run is Execute for operations that produce a value.
func Run[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error)) (T, error) {
	var (
		mu  sync.Mutex
		out T
	)
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		out = v
		mu.Unlock()
		return nil
	})
	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

type timedResult struct {
	err      error
	panicked bool
	panicVal any
}

// ExecuteWithTimeout runs op with a deadline of d. It returns ErrTimeout as
// soon as the deadline passes, without waiting for op to notice.
//
// A panic in op is re-raised in the caller, and a runtime.Goexit in op
// exits the caller's goroutine as well.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan timedResult, 1)
	go func() {
		a := timedResult{panicked: true}
		defer func() {
			if a.panicked {
				a.panicVal = recover()
			}
			done <- a
		}()
		a.err = op(ctx)
		a.panicked = false
	}()

	select {
	case a := <-done:
		if a.panicked {
			if a.panicVal == nil {
				runtime.Goexit()
			}
			panic(a.panicVal)
		}
		return a.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
