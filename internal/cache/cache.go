// Package cache provides the size-bounded, TTL-aware result cache shared by
// the analyzer and the decision path. Entries are evicted lazily on expiry,
// by LRU order when the byte budget overflows, and in bulk under memory
// pressure signals from the host.
package cache

import (
	"container/list"
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Default size charged to entries whose caller supplies no estimate.
const DefaultEntrySize = 1 << 10

// PressureLevel selects how aggressively Respond evicts.
type PressureLevel uint32

const (
	PressureLow      PressureLevel = iota // purge expired entries only
	PressureModerate                      // drop the oldest half
	PressureHigh                          // drop the oldest 80%
	PressureCritical                      // drop everything
)

// String returns the level name used in host pressure signals.
func (p PressureLevel) String() string {
	switch p {
	case PressureLow:
		return "low"
	case PressureModerate:
		return "moderate"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePressure maps a signal string to a level, defaulting to low.
func ParsePressure(s string) PressureLevel {
	switch s {
	case "moderate":
		return PressureModerate
	case "high":
		return PressureHigh
	case "critical":
		return PressureCritical
	default:
		return PressureLow
	}
}

type entry[T any] struct {
	key        string
	value      T
	insertedAt time.Time
	ttl        time.Duration
	size       int64
}

// Store is an LRU cache bounded by total byte size with lazy TTL expiry.
// All methods are safe for concurrent use.
type Store[T any] struct {
	mu     sync.Mutex
	budget int64
	used   int64
	ll     *list.List // front = most recently used
	items  map[string]*list.Element
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a store with the given byte budget.
func New[T any](budget int64) *Store[T] {
	if budget <= 0 {
		budget = DefaultEntrySize
	}
	return &Store[T]{
		budget: budget,
		ll:     list.New(),
		items:  make(map[string]*list.Element),
		now:    time.Now,
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses.
func (s *Store[T]) Get(key string) (T, bool) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.misses.Add(1)
		return zero, false
	}
	e := el.Value.(*entry[T])
	if s.now().Sub(e.insertedAt) > e.ttl {
		s.removeLocked(el)
		s.misses.Add(1)
		return zero, false
	}
	s.ll.MoveToFront(el)
	s.hits.Add(1)
	return e.value, true
}

// Put inserts or replaces an entry. A size at or below zero is charged
// DefaultEntrySize. Entries larger than the whole budget are not inserted.
func (s *Store[T]) Put(key string, value T, ttl time.Duration, size int64) {
	if size <= 0 {
		size = DefaultEntrySize
	}
	if size > s.budget {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.removeLocked(el)
	}

	e := &entry[T]{key: key, value: value, insertedAt: s.now(), ttl: ttl, size: size}
	s.items[key] = s.ll.PushFront(e)
	s.used += size

	for s.used > s.budget {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest)
		s.evictions.Add(1)
	}
}

// EvictExpired removes all entries past their TTL, returning the count.
func (s *Store[T]) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for el := s.ll.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry[T])
		if now.Sub(e.insertedAt) > e.ttl {
			s.removeLocked(el)
			s.evictions.Add(1)
			removed++
		}
		el = prev
	}
	return removed
}

// EvictOldest removes the given fraction of entries in LRU order, rounding
// up, returning the count.
func (s *Store[T]) EvictOldest(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := int(math.Ceil(float64(s.ll.Len()) * fraction))
	removed := 0
	for removed < target {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest)
		s.evictions.Add(1)
		removed++
	}
	return removed
}

// Clear drops every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ll.Init()
	s.items = make(map[string]*list.Element)
	s.used = 0
}

// Respond applies the eviction policy for a pressure level and returns the
// number of entries removed.
func (s *Store[T]) Respond(p PressureLevel) int {
	switch p {
	case PressureCritical:
		n := s.Len()
		s.Clear()
		return n
	case PressureHigh:
		return s.EvictOldest(0.8)
	case PressureModerate:
		return s.EvictOldest(0.5)
	default:
		return s.EvictExpired()
	}
}

// Janitor purges expired entries every interval until ctx is cancelled.
func (s *Store[T]) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictExpired()
		}
	}
}

// Len returns the number of live entries (including not-yet-purged expired ones).
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Stats is a counters snapshot for telemetry.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Entries     int   `json:"entries"`
	UsedBytes   int64 `json:"used_bytes"`
	BudgetBytes int64 `json:"budget_bytes"`
}

// Stats returns the current counters and occupancy.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	entries := s.ll.Len()
	used := s.used
	s.mu.Unlock()

	return Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Evictions:   s.evictions.Load(),
		Entries:     entries,
		UsedBytes:   used,
		BudgetBytes: s.budget,
	}
}

// removeLocked unlinks an element; callers hold the mutex.
func (s *Store[T]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[T])
	s.ll.Remove(el)
	delete(s.items, e.key)
	s.used -= e.size
}
