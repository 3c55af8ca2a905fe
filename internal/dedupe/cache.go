// ABOUTME: Bounded, TTL-limited seen-set keyed by message id.
// ABOUTME: Guards unread counters and message lists against duplicate delivery.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultTTL covers the window in which the backend can replay a push.
	DefaultTTL = 30 * time.Minute
	// DefaultMaxSize bounds memory for very long sessions.
	DefaultMaxSize = 10_000
)

type entry[K comparable] struct {
	key    K
	seenAt time.Time
}

// Set remembers keys for a limited time and evicts the oldest key once it
// holds maxSize entries. Expired entries are dropped lazily on access, so a
// Set owns no goroutine and needs no Close.
type Set[K comparable] struct {
	mu      sync.Mutex
	index   map[K]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a Set. A non-positive ttl or maxSize falls back to the default.
func New[K comparable](ttl time.Duration, maxSize int) *Set[K] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Set[K]{
		index:   make(map[K]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen reports whether key was marked and has not expired.
func (s *Set[K]) Seen(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	_, ok := s.index[key]
	return ok
}

// CheckAndMark atomically marks key and reports whether it had already been
// seen. Callers apply a message only when it returns false.
func (s *Set[K]) CheckAndMark(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	if _, ok := s.index[key]; ok {
		return true
	}
	s.markLocked(key)
	return false
}

// Mark records key as seen, refreshing its age if already present.
func (s *Set[K]) Mark(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	if elem, ok := s.index[key]; ok {
		elem.Value.(*entry[K]).seenAt = s.now()
		s.order.MoveToBack(elem)
		return
	}
	s.markLocked(key)
}

// Forget removes key so that a later delivery is applied again.
func (s *Set[K]) Forget(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.index[key]; ok {
		s.order.Remove(elem)
		delete(s.index, key)
	}
}

// Len returns the number of live entries.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return len(s.index)
}

// Reset drops every entry.
func (s *Set[K]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = make(map[K]*list.Element)
	s.order.Init()
}

// markLocked appends a new key. Must be called with mu held.
func (s *Set[K]) markLocked(key K) {
	if len(s.index) >= s.maxSize {
		if front := s.order.Front(); front != nil {
			s.order.Remove(front)
			delete(s.index, front.Value.(*entry[K]).key)
		}
	}
	s.index[key] = s.order.PushBack(&entry[K]{key: key, seenAt: s.now()})
}

// expireLocked drops entries older than ttl. Entries are kept in seen order,
// so it stops at the first live one. Must be called with mu held.
func (s *Set[K]) expireLocked() {
	cutoff := s.now().Add(-s.ttl)
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		e := front.Value.(*entry[K])
		if e.seenAt.After(cutoff) {
			return
		}
		s.order.Remove(front)
		delete(s.index, e.key)
	}
}
