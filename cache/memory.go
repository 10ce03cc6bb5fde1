package cache

import (
	"container/list"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/jonwraymond/callgate/keys"
)

// Store is an LRU- and age-bounded map from CallKey to Entry.
//
// Store is not safe for concurrent use; its owner serializes access.
type Store[V any] struct {
	policy Policy
	now    func() time.Time

	// recency holds items ordered least- to most-recently used.
	recency *simplelru.LRU[string, *item[V]]
	// ages holds the same items ordered by CreatedAt.
	ages *list.List

	mirror   Mirror[V]
	onEvict  func(Entry[V], Reason)
	onMirror func(error)
}

type item[V any] struct {
	entry Entry[V]
	age   *list.Element
}

// Option configures a Store.
type Option[V any] func(*Store[V])

// WithMirror reports every mutation to m.
func WithMirror[V any](m Mirror[V]) Option[V] {
	return func(s *Store[V]) {
		s.mirror = m
	}
}

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(s *Store[V]) {
		s.now = now
	}
}

// WithEvictHook calls fn for every entry removed by size, age or Evict.
func WithEvictHook[V any](fn func(Entry[V], Reason)) Option[V] {
	return func(s *Store[V]) {
		s.onEvict = fn
	}
}

// WithMirrorErrorHandler receives mirror errors raised by Get, which has no
// error return.
func WithMirrorErrorHandler[V any](fn func(error)) Option[V] {
	return func(s *Store[V]) {
		s.onMirror = fn
	}
}

// New creates an empty Store.
func New[V any](policy Policy, opts ...Option[V]) (*Store[V], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := &Store[V]{
		policy: policy,
		now:    time.Now,
		ages:   list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.now == nil {
		return nil, ErrNilClock
	}

	capacity := math.MaxInt
	if policy.Bounded() {
		capacity = policy.MaxSize
	}
	recency, err := simplelru.NewLRU[string, *item[V]](capacity, nil)
	if err != nil {
		return nil, err
	}
	s.recency = recency
	return s, nil
}

// Policy returns the store's bounds.
func (s *Store[V]) Policy() Policy {
	return s.policy
}

// Get returns the live entry for key and marks it most recently used.
// An expired entry is evicted and reported as a miss.
func (s *Store[V]) Get(key keys.CallKey) (Entry[V], bool) {
	it, ok := s.recency.Peek(key.Canonical)
	if !ok {
		return Entry[V]{}, false
	}
	if s.policy.Expired(it.entry.CreatedAt, s.now()) {
		if err := s.remove(it, ReasonAge); err != nil && s.onMirror != nil {
			s.onMirror(err)
		}
		return Entry[V]{}, false
	}
	s.recency.Get(key.Canonical)
	return it.entry, true
}

// Peek returns the live entry for key without touching recency.
func (s *Store[V]) Peek(key keys.CallKey) (Entry[V], bool) {
	it, ok := s.recency.Peek(key.Canonical)
	if !ok || s.policy.Expired(it.entry.CreatedAt, s.now()) {
		return Entry[V]{}, false
	}
	return it.entry, true
}

// Put stores outcome under key as the most recently used entry, then
// evicts least-recently-used entries until the store is within MaxSize.
// Overwriting refreshes CreatedAt. Mirror errors are joined and returned.
func (s *Store[V]) Put(key keys.CallKey, outcome Outcome[V]) (Entry[V], error) {
	var errs []error
	_, errs = s.pruneExpired(errs)

	entry := Entry[V]{Key: key, Outcome: outcome, CreatedAt: s.now()}

	if it, ok := s.recency.Peek(key.Canonical); ok {
		it.entry = entry
		s.ages.MoveToBack(it.age)
		s.recency.Get(key.Canonical)
	} else {
		for s.policy.Bounded() && s.recency.Len() >= s.policy.MaxSize {
			_, oldest, ok := s.recency.GetOldest()
			if !ok {
				break
			}
			if err := s.remove(oldest, ReasonSize); err != nil {
				errs = append(errs, err)
			}
		}
		it := &item[V]{entry: entry}
		it.age = s.ages.PushBack(it)
		s.recency.Add(key.Canonical, it)
	}

	if s.mirror != nil {
		if err := s.mirror.Put(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return entry, errors.Join(errs...)
}

// Evict removes key. It reports whether a live entry was removed.
func (s *Store[V]) Evict(key keys.CallKey) (bool, error) {
	it, ok := s.recency.Peek(key.Canonical)
	if !ok {
		return false, nil
	}
	expired := s.policy.Expired(it.entry.CreatedAt, s.now())
	reason := ReasonExplicit
	if expired {
		reason = ReasonAge
	}
	return !expired, s.remove(it, reason)
}

// Reset removes every entry.
func (s *Store[V]) Reset() error {
	s.recency.Purge()
	s.ages.Init()
	if s.mirror != nil {
		return s.mirror.Reset()
	}
	return nil
}

// PruneExpired evicts every expired entry and returns how many were removed.
func (s *Store[V]) PruneExpired() (int, error) {
	n, errs := s.pruneExpired(nil)
	return n, errors.Join(errs...)
}

func (s *Store[V]) pruneExpired(errs []error) (int, []error) {
	if !s.policy.Expires() {
		return 0, errs
	}
	now := s.now()
	n := 0
	for e := s.ages.Front(); e != nil; {
		it := e.Value.(*item[V])
		if !s.policy.Expired(it.entry.CreatedAt, now) {
			break
		}
		e = e.Next()
		if err := s.remove(it, ReasonAge); err != nil {
			errs = append(errs, err)
		}
		n++
	}
	return n, errs
}

// Len returns the number of stored entries, including expired entries not
// yet pruned.
func (s *Store[V]) Len() int {
	return s.recency.Len()
}

// Keys returns the stored keys from least to most recently used.
func (s *Store[V]) Keys() []keys.CallKey {
	items := s.recency.Values()
	out := make([]keys.CallKey, len(items))
	for i, it := range items {
		out[i] = it.entry.Key
	}
	return out
}

// Entries returns the stored entries from least to most recently used.
func (s *Store[V]) Entries() []Entry[V] {
	items := s.recency.Values()
	out := make([]Entry[V], len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

// Load replaces the store's contents with entries, given from least to most
// recently used. Expired entries and the least recent entries beyond MaxSize
// are skipped. Load does not notify the mirror. It returns how many entries
// were skipped.
func (s *Store[V]) Load(entries []Entry[V]) int {
	s.recency.Purge()
	s.ages.Init()

	now := s.now()
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.Key.Canonical] = i
	}
	live := make([]Entry[V], 0, len(entries))
	for i, e := range entries {
		if last[e.Key.Canonical] != i || s.policy.Expired(e.CreatedAt, now) {
			continue
		}
		live = append(live, e)
	}
	if s.policy.Bounded() && len(live) > s.policy.MaxSize {
		live = live[len(live)-s.policy.MaxSize:]
	}

	items := make([]*item[V], len(live))
	for i, e := range live {
		items[i] = &item[V]{entry: e}
		s.recency.Add(e.Key.Canonical, items[i])
	}

	byAge := slices.Clone(items)
	slices.SortStableFunc(byAge, func(a, b *item[V]) int {
		return a.entry.CreatedAt.Compare(b.entry.CreatedAt)
	})
	for _, it := range byAge {
		it.age = s.ages.PushBack(it)
	}

	return len(entries) - s.recency.Len()
}

func (s *Store[V]) remove(it *item[V], reason Reason) error {
	s.recency.Remove(it.entry.Key.Canonical)
	s.ages.Remove(it.age)
	if s.onEvict != nil {
		s.onEvict(it.entry, reason)
	}
	if s.mirror != nil {
		return s.mirror.Evict(it.entry.Key)
	}
	return nil
}
