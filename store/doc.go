// Package store persists memoized results across process restarts.
//
// A Journal is an append-only file of JSON lines. Each line is one record:
// a put, an evict or a reset, checksummed with xxhash64. Open replays the
// journal into the latest entry per key and fails with ErrCorrupt if any
// record cannot be read, rather than starting empty. Compact rewrites the
// file atomically with exactly the live entries.
//
// A journal has a single writer. Sharing one file between processes is not
// supported.
package store
