package memo

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Resettable is the type-erased control surface of a Memoizer.
type Resettable interface {
	Name() string
	Reset(ctx context.Context) error
	Close() error
}

// Registry collects memoizers so they can be reset or closed together.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ordering: ResetAll and CloseAll visit members in registration order.
type Registry struct {
	mu      sync.Mutex
	members []Resettable
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds r. Registering the same value twice is a no-op.
func (g *Registry) Register(r Resettable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m == r {
			return
		}
	}
	g.members = append(g.members, r)
}

// Names returns the member names in registration order.
func (g *Registry) Names() []string {
	members := g.snapshot()
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	return names
}

// ResetAll resets every member. Failures are joined; a failing member does
// not stop the others.
func (g *Registry) ResetAll(ctx context.Context) error {
	var errs []error
	for _, m := range g.snapshot() {
		if err := m.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every member.
func (g *Registry) CloseAll() error {
	var errs []error
	for _, m := range g.snapshot() {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (g *Registry) snapshot() []Resettable {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Resettable(nil), g.members...)
}
