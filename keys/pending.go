package keys

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Pending is a key component whose value is not known yet.
// The deriver resolves every pending pre-key element before hashing.
type Pending interface {
	Resolve(ctx context.Context) (any, error)
}

type future struct {
	done chan struct{}
	val  any
	err  error
}

// Async starts fn in its own goroutine and returns a Pending for its result.
// The computation runs once; Resolve waits for it or for ctx.
func Async(fn func(ctx context.Context) (any, error)) Pending {
	f := &future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(context.Background())
	}()
	return f
}

// Resolved returns a Pending that is already settled with v.
func Resolved(v any) Pending {
	f := &future{done: make(chan struct{}), val: v}
	close(f.done)
	return f
}

func (f *future) Resolve(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolvePending returns a copy of elems with every Pending replaced by its
// value. Pending elements resolve concurrently; the first failure cancels the
// rest.
func resolvePending(ctx context.Context, elems []any) ([]any, error) {
	out := make([]any, len(elems))
	copy(out, elems)

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range elems {
		p, ok := e.(Pending)
		if !ok {
			continue
		}
		g.Go(func() error {
			v, err := p.Resolve(gctx)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if _, nested := v.(Pending); nested {
				return fmt.Errorf("element %d: resolved to another pending value", i)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
