package store

import (
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/callgate/cache"
	"github.com/jonwraymond/callgate/keys"
)

// Encode converts a cache entry into its persisted form. Values are encoded
// with encoding/json; errors keep only their message.
func Encode[V any](e cache.Entry[V]) (Entry, error) {
	out := Entry{Key: e.Key, Err: e.Outcome.Err, CreatedAt: e.CreatedAt}
	if e.Outcome.Err != nil {
		return out, nil
	}
	b, err := json.Marshal(e.Outcome.Value)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: encode value for %s: %v", ErrWrite, e.Key, err)
	}
	out.Value = b
	return out, nil
}

// Decode converts a persisted entry back into a cache entry.
func Decode[V any](e Entry) (cache.Entry[V], error) {
	out := cache.Entry[V]{Key: e.Key, CreatedAt: e.CreatedAt}
	if e.Err != nil {
		out.Outcome.Err = e.Err
		return out, nil
	}
	if err := json.Unmarshal(e.Value, &out.Outcome.Value); err != nil {
		return cache.Entry[V]{}, fmt.Errorf("%w: decode value for %s: %v", ErrCorrupt, e.Key, err)
	}
	return out, nil
}

// Mirror writes cache mutations to a Journal.
type Mirror[V any] struct {
	j *Journal
}

// NewMirror returns a cache.Mirror backed by j.
func NewMirror[V any](j *Journal) *Mirror[V] {
	return &Mirror[V]{j: j}
}

// Put appends e to the journal.
func (m *Mirror[V]) Put(e cache.Entry[V]) error {
	rec, err := Encode(e)
	if err != nil {
		return &PersistenceError{Op: "put", Path: m.j.Path(), Err: err}
	}
	return m.j.Put(rec)
}

// Evict appends an eviction of key.
func (m *Mirror[V]) Evict(key keys.CallKey) error {
	return m.j.Evict(key)
}

// Reset truncates the journal.
func (m *Mirror[V]) Reset() error {
	return m.j.Reset()
}

// Load decodes every live journal entry, least recent first.
func Load[V any](j *Journal) ([]cache.Entry[V], error) {
	persisted := j.Entries()
	out := make([]cache.Entry[V], 0, len(persisted))
	for _, p := range persisted {
		e, err := Decode[V](p)
		if err != nil {
			return nil, &PersistenceError{Op: "load", Path: j.Path(), Err: err}
		}
		out = append(out, e)
	}
	return out, nil
}

// Snapshot encodes entries for Compact.
func Snapshot[V any](entries []cache.Entry[V]) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		p, err := Encode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var _ cache.Mirror[int] = (*Mirror[int])(nil)
