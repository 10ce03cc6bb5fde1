package memo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/callgate/cache"
	"github.com/jonwraymond/callgate/flight"
	"github.com/jonwraymond/callgate/keys"
	"github.com/jonwraymond/callgate/observe"
	"github.com/jonwraymond/callgate/resilience"
	"github.com/jonwraymond/callgate/store"
)

// Func is a memoizable function. It receives the normalized arguments of
// the call. A Func that calls its own memoizer must pass ctx along so a
// same-key call can be detected.
type Func[V any] func(ctx context.Context, b keys.Binding) (V, error)

// Memoizer caches the outcomes of a Func per call key.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent calls with the same
//     key share one execution.
//   - Errors: a returned error is cached like a value, except context
//     errors, gate rejections, attempt timeouts and panics.
//   - Reentrancy: a call made from inside the computation for the same key
//     fails with flight.ErrReentrant.
type Memoizer[V any] struct {
	name    string
	fn      Func[V]
	deriver *keys.Deriver
	gate    *resilience.Gate
	exec    *resilience.Executor
	now     func() time.Time

	meta    observe.FuncMeta
	mw      *observe.Middleware
	metrics observe.Metrics
	logger  observe.Logger

	mu      sync.Mutex
	entries *cache.Store[V]
	group   *flight.Group[V]
	journal *store.Journal
	closed  bool

	statsMu      sync.Mutex
	writeErrors  int64
	lastWriteErr error
}

// Stats is a point-in-time view of a Memoizer.
type Stats struct {
	Entries        int
	InFlight       int
	Closed         bool
	Path           string
	WriteErrors    int64
	LastWriteError error
}

// New wraps fn. When cfg.Store is set, the journal is opened and replayed
// before New returns; an unreachable or corrupt journal fails New with a
// *store.PersistenceError.
func New[V any](fn Func[V], cfg Config, opts ...Option) (*Memoizer[V], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "memo"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	deriver, err := keys.NewDeriver(cfg.Signature, cfg.KeyFunc)
	if err != nil {
		return nil, err
	}

	mw := observe.NewMiddleware(o.tracer, o.metrics, o.logger)
	m := &Memoizer[V]{
		name:    cfg.Name,
		fn:      fn,
		deriver: deriver,
		gate:    o.gate,
		exec:    o.exec,
		now:     cfg.Now,
		meta:    observe.FuncMeta{Name: cfg.Name, Kind: observe.KindMemo},
		mw:      mw,
		metrics: mw.Metrics(),
		group:   flight.NewGroup[V](),
	}
	m.logger = mw.Logger().WithFunc(m.meta)

	path, err := cfg.Store.resolve(cfg.Name)
	if err != nil {
		return nil, err
	}
	if path != "" {
		m.journal, err = store.Open(path, store.WithSync(cfg.SyncWrites))
		if err != nil {
			return nil, err
		}
	}

	cacheOpts := []cache.Option[V]{
		cache.WithClock[V](cfg.Now),
		cache.WithEvictHook(m.onEvict),
		cache.WithMirrorErrorHandler[V](func(err error) { m.noteWrite(context.Background(), err) }),
	}
	if m.journal != nil {
		cacheOpts = append(cacheOpts, cache.WithMirror[V](store.NewMirror[V](m.journal)))
	}
	m.entries, err = cache.New[V](cfg.policy(), cacheOpts...)
	if err != nil {
		m.closeJournal()
		return nil, err
	}

	if m.journal != nil {
		if err := m.restore(); err != nil {
			m.closeJournal()
			return nil, err
		}
	}

	if o.registry != nil {
		o.registry.Register(m)
	}
	return m, nil
}

// restore loads the journal into the cache, then rewrites the journal so
// it holds exactly the entries that survived.
func (m *Memoizer[V]) restore() error {
	persisted, err := store.Load[V](m.journal)
	if err != nil {
		return err
	}
	skipped := m.entries.Load(persisted)

	if skipped > 0 || m.journal.Records() != m.entries.Len() {
		snapshot, err := store.Snapshot(m.entries.Entries())
		if err != nil {
			return &store.PersistenceError{Op: "compact", Path: m.journal.Path(), Err: err}
		}
		if err := m.journal.Compact(snapshot); err != nil {
			return err
		}
	}

	m.logger.Info(context.Background(), "journal loaded",
		observe.Field{Key: "path", Value: m.journal.Path()},
		observe.Field{Key: "entries", Value: m.entries.Len()},
		observe.Field{Key: "skipped", Value: skipped},
	)
	return nil
}

func (m *Memoizer[V]) closeJournal() {
	if m.journal != nil {
		_ = m.journal.Close()
	}
}

// Name returns the memoizer's name.
func (m *Memoizer[V]) Name() string {
	return m.name
}

// Call returns the outcome for args, computing it at most once per key
// while it stays cached.
//
// A caller that finds the key already being computed waits for that
// computation; cancelling its ctx abandons only its own wait. When the
// computing caller's ctx ends, everyone waiting receives the context
// error and nothing is cached. If the computation panics, waiters
// receive a *flight.PanicError and the panic is re-raised in the
// computing caller. If the computing goroutine exits without returning,
// as with runtime.Goexit, waiters receive flight.ErrAbandoned.
//
// If the outcome was computed but could not be written to the journal,
// Call returns the value together with a *store.PersistenceError; the
// outcome stays cached in memory.
func (m *Memoizer[V]) Call(ctx context.Context, args keys.Args) (V, error) {
	var zero V

	key, b, err := m.deriver.Derive(ctx, args)
	if err != nil {
		return zero, err
	}
	if flight.IsLeader(ctx, m, key) {
		return zero, fmt.Errorf("%w: %s %s", flight.ErrReentrant, m.name, key)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return zero, ErrClosed
	}
	if e, ok := m.entries.Get(key); ok {
		m.mu.Unlock()
		m.metrics.RecordLookup(ctx, m.meta, observe.LookupHit)
		return e.Outcome.Value, e.Outcome.Err
	}
	call, role := m.group.Join(key)
	m.mu.Unlock()

	if role == flight.Follower {
		m.metrics.RecordLookup(ctx, m.meta, observe.LookupShared)
		return call.Wait(ctx)
	}
	m.metrics.RecordLookup(ctx, m.meta, observe.LookupMiss)

	returned := false
	defer func() {
		if returned {
			return
		}
		m.mu.Lock()
		m.group.Settle(call, zero, flight.ErrAbandoned)
		m.mu.Unlock()
		m.logger.Warn(ctx, "leader exited without a result", observe.Field{Key: "key", Value: key.String()})
	}()
	res := m.lead(ctx, key, b)
	returned = true

	m.mu.Lock()
	stored := false
	var writeErr error
	if !m.closed && m.cacheable(ctx, res) {
		_, writeErr = m.entries.Put(key, cache.Outcome[V]{Value: res.Value, Err: res.Err})
		stored = true
	}
	m.group.Settle(call, res.Value, res.Err)
	m.mu.Unlock()

	if stored && m.journal != nil {
		m.noteWrite(ctx, writeErr)
	}
	if res.Panic != nil {
		panic(res.Panic)
	}
	if res.Err == nil && writeErr != nil {
		return res.Value, writeErr
	}
	return res.Value, res.Err
}

// lead runs the computation for key outside the lock.
func (m *Memoizer[V]) lead(ctx context.Context, key keys.CallKey, b keys.Binding) flight.Result[V] {
	compute := func(ctx context.Context) (V, error) {
		return m.fn(ctx, b)
	}
	if m.exec != nil {
		attempt := compute
		compute = func(ctx context.Context) (V, error) {
			return resilience.Run(ctx, m.exec, attempt)
		}
	}
	if m.gate != nil {
		admitted := compute
		compute = func(ctx context.Context) (V, error) {
			return resilience.Do(ctx, m.gate, admitted)
		}
	}

	var res flight.Result[V]
	_ = m.mw.Observe(ctx, m.meta, func(ctx context.Context) error {
		res = flight.Run(ctx, m, key, compute)
		return res.Err
	})
	return res
}

// cacheable reports whether a leader's outcome may be stored. Outcomes
// that describe the call rather than the arguments are not.
func (m *Memoizer[V]) cacheable(ctx context.Context, res flight.Result[V]) bool {
	switch {
	case res.Panic != nil:
		return false
	case res.Err == nil:
		return true
	case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
		return false
	case ctx.Err() != nil:
		return false
	case errors.Is(res.Err, resilience.ErrBlocked), errors.Is(res.Err, resilience.ErrAdmissionTimeout):
		return false
	case errors.Is(res.Err, resilience.ErrTimeout):
		return false
	}
	return true
}

// Evict removes the outcome cached for args. It reports whether a live
// outcome was removed.
func (m *Memoizer[V]) Evict(ctx context.Context, args keys.Args) (bool, error) {
	key, _, err := m.deriver.Derive(ctx, args)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	removed, err := m.entries.Evict(key)
	m.mu.Unlock()

	if m.journal != nil {
		m.noteWrite(ctx, err)
	}
	return removed, err
}

// Reset drops every cached outcome, in memory and in the journal.
// Computations in flight are unaffected and store their outcome when
// they finish.
func (m *Memoizer[V]) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	n := m.entries.Len()
	err := m.entries.Reset()
	m.mu.Unlock()

	if m.journal != nil {
		m.noteWrite(ctx, err)
	}
	m.logger.Info(ctx, "cache reset", observe.Field{Key: "entries", Value: n})
	return err
}

// Len returns the number of live cached outcomes.
func (m *Memoizer[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	policy := m.entries.Policy()
	if !policy.Expires() {
		return m.entries.Len()
	}
	now := m.now()
	n := 0
	for _, e := range m.entries.Entries() {
		if !policy.Expired(e.CreatedAt, now) {
			n++
		}
	}
	return n
}

// Close compacts and closes the journal. Later calls fail with ErrClosed.
// Closing twice is a no-op.
func (m *Memoizer[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.journal == nil {
		return nil
	}

	var errs []error
	if _, err := m.entries.PruneExpired(); err != nil {
		errs = append(errs, err)
	}
	snapshot, err := store.Snapshot(m.entries.Entries())
	if err != nil {
		errs = append(errs, err)
	} else if err := m.journal.Compact(snapshot); err != nil {
		errs = append(errs, err)
	}
	if err := m.journal.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the memoizer's state.
func (m *Memoizer[V]) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		Entries:  m.entries.Len(),
		InFlight: m.group.Len(),
		Closed:   m.closed,
	}
	if m.journal != nil {
		s.Path = m.journal.Path()
	}
	m.mu.Unlock()

	m.statsMu.Lock()
	s.WriteErrors = m.writeErrors
	s.LastWriteError = m.lastWriteErr
	m.statsMu.Unlock()
	return s
}

func (m *Memoizer[V]) onEvict(_ cache.Entry[V], reason cache.Reason) {
	m.metrics.RecordEviction(context.Background(), m.meta, string(reason))
}

// noteWrite records the result of a journal write. It may run under m.mu.
func (m *Memoizer[V]) noteWrite(ctx context.Context, err error) {
	m.statsMu.Lock()
	m.lastWriteErr = err
	if err != nil {
		m.writeErrors++
	}
	m.statsMu.Unlock()

	if err != nil {
		m.metrics.RecordWriteError(ctx, m.meta)
		m.logger.Warn(ctx, "journal write failed", observe.Field{Key: "error", Value: err.Error()})
	}
}
