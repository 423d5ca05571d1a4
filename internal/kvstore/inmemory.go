package kvstore

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process Store for tests and local use. It
// honors the same bounding and expiry semantics as the Redis store.
type InMemoryStore struct {
	mu      sync.RWMutex
	values  map[string]entry
	lists   map[string]*listEntry
	maxLen  int
	listTTL time.Duration

	// Now is the clock used for expiry checks; tests may override it.
	Now func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time
}

type listEntry struct {
	items     []string
	expiresAt time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values:  make(map[string]entry),
		lists:   make(map[string]*listEntry),
		maxLen:  50,
		listTTL: 24 * time.Hour,
		Now:     time.Now,
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[key]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && !s.Now().Before(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (s *InMemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.Now().Add(ttl)
	}
	s.values[key] = e
}

func (s *InMemoryStore) ListAppend(_ context.Context, key, item string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[key]
	if !ok || (!l.expiresAt.IsZero() && !s.Now().Before(l.expiresAt)) {
		l = &listEntry{}
		s.lists[key] = l
	}
	l.items = append(l.items, item)
	if len(l.items) > s.maxLen {
		l.items = l.items[len(l.items)-s.maxLen:]
	}
	l.expiresAt = s.Now().Add(s.listTTL)
	return nil
}

func (s *InMemoryStore) ListRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[key]
	if !ok || (!l.expiresAt.IsZero() && !s.Now().Before(l.expiresAt)) {
		return nil, nil
	}
	n := int64(len(l.items))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	out = append(out, l.items[start:stop+1]...)
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.lists, key)
	return nil
}

func (s *InMemoryStore) Connected() bool { return true }

func (s *InMemoryStore) Close() error { return nil }

var _ Store = (*InMemoryStore)(nil)
