// Package observe provides observability primitives for gated calls.
//
// It is a pure instrumentation library: no caching, no admission, no I/O
// beyond exporter setup. Memoizers and gates accept the Logger, Metrics and
// Tracer defined here; an Observer builds all three from one Config.
package observe
