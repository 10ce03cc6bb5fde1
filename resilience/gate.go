package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/callgate/observe"
)

// GateConfig configures an admission gate.
type GateConfig struct {
	// Name identifies the gate in logs, spans and metrics.
	// Default: "gate"
	Name string

	// MaxConcurrent is the maximum number of admitted, unreleased callers.
	// Required, must be > 0.
	MaxConcurrent int

	// Window enables the call budget: at most WindowLimit admissions may
	// start within any trailing Window.
	// Default: 0 (no window)
	Window time.Duration

	// WindowLimit is the number of admissions allowed per Window.
	// Default: MaxConcurrent when Window is set.
	WindowLimit int

	// MaxWait bounds how long Acquire waits before ErrAdmissionTimeout.
	// Default: 0 (wait until the context ends)
	MaxWait time.Duration

	// MaxWaiters rejects callers with ErrBlocked once this many are waiting.
	// Default: 0 (unlimited)
	MaxWaiters int

	// Now is the gate's clock.
	// Default: time.Now
	Now func() time.Time
}

// Validate checks the configuration.
func (c GateConfig) Validate() error {
	switch {
	case c.MaxConcurrent <= 0:
		return fmt.Errorf("%w: MaxConcurrent must be > 0, got %d", ErrInvalidConfig, c.MaxConcurrent)
	case c.Window < 0:
		return fmt.Errorf("%w: Window must be >= 0, got %v", ErrInvalidConfig, c.Window)
	case c.WindowLimit < 0:
		return fmt.Errorf("%w: WindowLimit must be >= 0, got %d", ErrInvalidConfig, c.WindowLimit)
	case c.WindowLimit > 0 && c.Window == 0:
		return fmt.Errorf("%w: WindowLimit requires a Window", ErrInvalidConfig)
	case c.MaxWait < 0:
		return fmt.Errorf("%w: MaxWait must be >= 0, got %v", ErrInvalidConfig, c.MaxWait)
	case c.MaxWaiters < 0:
		return fmt.Errorf("%w: MaxWaiters must be >= 0, got %d", ErrInvalidConfig, c.MaxWaiters)
	}
	return nil
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithInstruments reports admissions and executions through in.
func WithInstruments(in observe.Instruments) GateOption {
	return func(g *Gate) {
		g.mw = observe.MiddlewareFromInstruments(in)
	}
}

// Gate admits callers subject to a concurrency bound and an optional
// trailing-window call budget.
type Gate struct {
	config GateConfig
	meta   observe.FuncMeta
	sem    *semaphore.Weighted
	mw     *observe.Middleware

	mu        sync.Mutex
	win       *window
	active    int
	maxActive int
	waiters   int
	rejected  int64
	timedOut  int64
}

// NewGate creates a gate.
func NewGate(config GateConfig, opts ...GateOption) (*Gate, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "gate"
	}
	if config.Window > 0 && config.WindowLimit == 0 {
		config.WindowLimit = config.MaxConcurrent
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	g := &Gate{
		config: config,
		meta:   observe.FuncMeta{Name: config.Name, Kind: observe.KindGate},
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
		win:    newWindow(config.Window, config.WindowLimit),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.mw == nil {
		g.mw = observe.MiddlewareFromInstruments(observe.NopInstruments())
	}
	return g, nil
}

// Permit is an admission. Release returns its concurrency slot.
type Permit struct {
	gate *Gate
	once sync.Once
}

// Release returns the permit's slot. Calling it more than once is a no-op.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(p.gate.release)
}

// TryAcquire admits the caller only if that needs no waiting and nobody
// is already waiting in Acquire. It returns ErrBlocked otherwise.
func (g *Gate) TryAcquire() (*Permit, error) {
	ctx := context.Background()
	p, ok := g.tryAdmit()
	if !ok {
		g.reject(ctx, observe.AdmissionBlocked, 0)
		return nil, ErrBlocked
	}
	g.mw.Metrics().RecordAdmission(ctx, g.meta, observe.AdmissionAdmitted, 0)
	return p, nil
}

// Acquire blocks until the caller is admitted, MaxWait elapses, or ctx ends.
func (g *Gate) Acquire(ctx context.Context) (_ *Permit, err error) {
	if p, ok := g.tryAdmit(); ok {
		g.mw.Metrics().RecordAdmission(ctx, g.meta, observe.AdmissionAdmitted, 0)
		return p, nil
	}

	g.mu.Lock()
	if g.config.MaxWaiters > 0 && g.waiters >= g.config.MaxWaiters {
		waiting := g.waiters
		g.mu.Unlock()
		g.reject(ctx, observe.AdmissionBlocked, 0, observe.Field{Key: "waiters", Value: waiting})
		return nil, ErrBlocked
	}
	g.waiters++
	g.mu.Unlock()

	ctx, span := g.mw.Tracer().StartSpan(ctx, g.meta)
	start := time.Now()
	defer func() {
		g.mu.Lock()
		g.waiters--
		g.mu.Unlock()
		g.mw.Tracer().EndSpan(span, err)
	}()

	waitCtx := ctx
	if g.config.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.config.MaxWait)
		defer cancel()
	}

	p, err := g.wait(waitCtx)
	wait := time.Since(start)
	if err == nil {
		g.mw.Metrics().RecordAdmission(ctx, g.meta, observe.AdmissionAdmitted, wait)
		return p, nil
	}

	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		g.mu.Lock()
		g.timedOut++
		g.mu.Unlock()
		g.reject(ctx, observe.AdmissionTimeout, wait)
		return nil, ErrAdmissionTimeout
	}
	g.mw.Metrics().RecordAdmission(ctx, g.meta, observe.AdmissionCanceled, wait)
	return nil, ctx.Err()
}

// tryAdmit admits the caller if both a slot and window room are free now
// and no earlier caller is queued for them.
func (g *Gate) tryAdmit() (*Permit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waiters > 0 || !g.sem.TryAcquire(1) {
		return nil, false
	}
	now := g.config.Now()
	if g.win.delay(now) > 0 {
		g.sem.Release(1)
		return nil, false
	}
	return g.admitLocked(now), true
}

// wait takes a concurrency slot, then waits for room in the window.
// A slot taken while the window is full is returned if ctx ends first.
func (g *Gate) wait(ctx context.Context) (*Permit, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	for {
		g.mu.Lock()
		now := g.config.Now()
		d := g.win.delay(now)
		if d <= 0 {
			p := g.admitLocked(now)
			g.mu.Unlock()
			return p, nil
		}
		g.mu.Unlock()

		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			g.sem.Release(1)
			return nil, ctx.Err()
		}
	}
}

func (g *Gate) admitLocked(now time.Time) *Permit {
	g.win.record(now)
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	return &Permit{gate: g}
}

func (g *Gate) release() {
	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	g.sem.Release(1)
}

func (g *Gate) reject(ctx context.Context, result string, wait time.Duration, fields ...observe.Field) {
	if result == observe.AdmissionBlocked {
		g.mu.Lock()
		g.rejected++
		g.mu.Unlock()
	}
	g.mw.Metrics().RecordAdmission(ctx, g.meta, result, wait)
	g.mw.Logger().WithFunc(g.meta).Debug(ctx, "admission rejected",
		append(fields, observe.Field{Key: "result", Value: result})...)
}

// Execute runs op once admitted and releases the permit on every exit path.
func (g *Gate) Execute(ctx context.Context, op func(context.Context) error) error {
	p, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release()

	return g.mw.Observe(ctx, g.meta, op)
}

// Do runs fn through gate g and returns its result.
func Do[T any](ctx context.Context, g *Gate, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Name returns the gate's name.
func (g *Gate) Name() string { return g.config.Name }

// Config returns the effective configuration, defaults applied.
func (g *Gate) Config() GateConfig { return g.config }

// Metrics returns current gate statistics.
func (g *Gate) Metrics() GateMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	return GateMetrics{
		Active:        g.active,
		MaxActive:     g.maxActive,
		Available:     g.config.MaxConcurrent - g.active,
		MaxConcurrent: g.config.MaxConcurrent,
		Waiters:       g.waiters,
		Rejected:      g.rejected,
		TimedOut:      g.timedOut,
		WindowUsed:    g.win.used(g.config.Now()),
		WindowLimit:   g.config.WindowLimit,
	}
}

// GateMetrics contains gate statistics.
type GateMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Waiters       int
	Rejected      int64
	TimedOut      int64
	WindowUsed    int
	WindowLimit   int
}
