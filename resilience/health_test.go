package resilience

import (
	"context"
	"testing"

	"github.com/jonwraymond/callgate/health"
)

func TestGateChecker(t *testing.T) {
	g := mustGate(t, GateConfig{Name: "billing", MaxConcurrent: 1})
	checker := GateChecker(g)

	if checker.Name() != "billing" {
		t.Errorf("Name() = %q, want billing", checker.Name())
	}

	r := checker.Check(context.Background())
	if r.Status != health.StatusHealthy {
		t.Fatalf("idle gate = %v, want healthy", r.Status)
	}

	p, _ := g.TryAcquire()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p2, err := g.Acquire(context.Background())
		if err == nil {
			p2.Release()
		}
	}()
	waitFor(t, func() bool { return g.Metrics().Waiters == 1 })

	r = checker.Check(context.Background())
	if r.Status != health.StatusDegraded {
		t.Errorf("gate with waiters = %v, want degraded", r.Status)
	}
	if r.Details["waiters"] != 1 {
		t.Errorf("details[waiters] = %v", r.Details["waiters"])
	}

	p.Release()
	<-done
}
