// pkg/memcache/tick_leases.go
package memcache

import (
	"sync"
	"time"
)

// LeaseStore hands out short-lived, in-process exclusive leases keyed by
// task name.
type LeaseStore interface {
	// Acquire takes the lease for key on behalf of holder when it is free or
	// expired. It returns false while someone else holds it.
	Acquire(key, holder string, ttl time.Duration) bool

	// Release frees the lease only if holder still owns it.
	Release(key, holder string)

	// Peek reports the current holder of an unexpired lease.
	Peek(key string) (string, bool)
}

type lease struct {
	holder    string
	expiresAt time.Time
}

type TickLeases struct {
	mu    sync.Mutex
	data  map[string]lease
	clock func() time.Time
}

func NewTickLeases() *TickLeases {
	return &TickLeases{
		data:  make(map[string]lease),
		clock: time.Now,
	}
}

func (s *TickLeases) Acquire(key, holder string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if l, ok := s.data[key]; ok && now.Before(l.expiresAt) {
		return false
	}
	s.data[key] = lease{holder: holder, expiresAt: now.Add(ttl)}
	return true
}

func (s *TickLeases) Release(key, holder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.data[key]; ok && l.holder == holder {
		delete(s.data, key)
	}
}

func (s *TickLeases) Peek(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data[key]
	if !ok || !s.clock().Before(l.expiresAt) {
		return "", false
	}
	return l.holder, true
}
