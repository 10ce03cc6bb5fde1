// Package resilience provides admission control and retry composition for
// arbitrary calls.
//
// # Gate
//
// A Gate bounds how many callers run at once and, optionally, how many may
// start within any trailing window:
//
//	gate, err := resilience.NewGate(resilience.GateConfig{
//	    Name:          "billing_api",
//	    MaxConcurrent: 4,
//	    Window:        time.Second,
//	    WindowLimit:   10,
//	})
//
//	user, err := resilience.Do(ctx, gate, func(ctx context.Context) (*User, error) {
//	    return client.FetchUser(ctx, id)
//	})
//
// Acquire blocks until admission, MaxWait, or context cancellation;
// TryAcquire never blocks and reports ErrBlocked. The window counts
// admissions, so a caller holding a permit for a long time does not consume
// more than one unit of the budget.
//
// # Retry
//
// Retry re-runs failed operations with constant, linear or exponential
// backoff. Retries(n) is the immediate form: n+1 attempts, no delay.
// Context cancellation is never retried.
//
// # Composition
//
//	exec := resilience.NewExecutor(
//	    resilience.WithGate(gate),
//	    resilience.WithRetry(resilience.Retries(2)),
//	    resilience.WithTimeout(5*time.Second),
//	)
//	err := exec.Execute(ctx, callExternalService)
package resilience
