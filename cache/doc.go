// Package cache provides the in-memory result store behind memoized calls.
//
// A Store keeps one Entry per CallKey, ordered by recency. It enforces two
// independent bounds: a maximum entry count (least-recently-used entries are
// evicted first) and a maximum age (entries older than MaxAge are treated as
// misses and dropped). Both successful values and errors are stored.
//
// Every mutation is reported synchronously to an optional Mirror, which is
// how durable persistence observes the store.
package cache
