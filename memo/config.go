package memo

import (
	"time"

	"github.com/jonwraymond/callgate/cache"
	"github.com/jonwraymond/callgate/keys"
	"github.com/jonwraymond/callgate/observe"
	"github.com/jonwraymond/callgate/resilience"
	"github.com/jonwraymond/callgate/store"
)

// StoreLocation says where, if anywhere, a memoizer persists its entries.
type StoreLocation struct {
	path       string
	useDefault bool
}

// NoStore keeps entries in memory only.
var NoStore = StoreLocation{}

// DefaultStore persists to a journal named after Config.Name under
// ~/.callgate.
func DefaultStore() StoreLocation {
	return StoreLocation{useDefault: true}
}

// StoreAt persists to the journal at path. A leading ~ and ${VAR}
// references are expanded; a missing variable fails New.
func StoreAt(path string) StoreLocation {
	return StoreLocation{path: path}
}

// Enabled reports whether l persists anything.
func (l StoreLocation) Enabled() bool {
	return l.useDefault || l.path != ""
}

func (l StoreLocation) resolve(name string) (string, error) {
	switch {
	case l.useDefault:
		if name == "" {
			return "", ErrMissingName
		}
		return store.DefaultPath(name)
	case l.path != "":
		return store.ExpandPath(l.path)
	}
	return "", nil
}

// Config configures a Memoizer. It is copied by New and never changes
// afterwards.
type Config struct {
	// Name identifies the memoizer in logs, spans, metrics and the default
	// journal location.
	// Default: "memo"
	Name string

	// Signature is the parameter list arguments are bound against.
	// Default: the positional-only signature.
	Signature keys.Signature

	// MaxSize bounds the number of cached outcomes; the least recently
	// used are evicted first.
	// Default: 0 (unbounded)
	MaxSize int

	// MaxAge is how long an outcome stays cached.
	// Default: 0 (never expires)
	MaxAge time.Duration

	// KeyFunc replaces the binding as the pre-key.
	// Default: nil
	KeyFunc keys.KeyFunc

	// Store is the persistence location.
	// Default: NoStore
	Store StoreLocation

	// SyncWrites fsyncs the journal after every record.
	// Default: false
	SyncWrites bool

	// Now is the memoizer's clock.
	// Default: time.Now
	Now func() time.Time
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.policy().Validate(); err != nil {
		return err
	}
	if err := c.Signature.Validate(); err != nil {
		return err
	}
	if c.Store.useDefault && c.Name == "" {
		return ErrMissingName
	}
	return nil
}

func (c Config) policy() cache.Policy {
	return cache.Policy{MaxSize: c.MaxSize, MaxAge: c.MaxAge}
}

// Option configures a Memoizer.
type Option func(*options)

type options struct {
	tracer   observe.Tracer
	metrics  observe.Metrics
	logger   observe.Logger
	gate     *resilience.Gate
	exec     *resilience.Executor
	registry *Registry
	err      error
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithInstruments sets tracer, metrics and logger at once. Nil members
// are left unchanged.
func WithInstruments(in observe.Instruments) Option {
	return func(o *options) {
		if in.Tracer != nil {
			o.tracer = in.Tracer
		}
		if in.Metrics != nil {
			o.metrics = in.Metrics
		}
		if in.Logger != nil {
			o.logger = in.Logger
		}
	}
}

// WithObserver takes tracer, metrics and logger from obs.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		in, err := observe.InstrumentsFromObserver(obs)
		if err != nil {
			o.err = err
			return
		}
		WithInstruments(in)(o)
	}
}

// WithGate runs every computation under g's admission control. Outcomes
// of calls the gate turned away are not cached.
func WithGate(g *resilience.Gate) Option {
	return func(o *options) {
		o.gate = g
	}
}

// WithExecutor runs every computation through e, so a failed attempt can
// be retried or bounded by a timeout before the outcome is cached. With
// WithGate also set, one admission covers all attempts. Attempt timeouts
// are not cached.
func WithExecutor(e *resilience.Executor) Option {
	return func(o *options) {
		o.exec = e
	}
}

// WithRegistry registers the new memoizer with r.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}
