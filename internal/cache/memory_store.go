package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memEntry struct {
	val     []byte
	expires time.Time
}

// MemoryStore is the in-process Store used when redis is not configured. Expired entries are
// hidden on read and removed by a janitor.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memEntry
	clock   clockwork.Clock
	stop    chan struct{}
	stopped sync.Once
}

// NewMemoryStore starts a janitor sweeping every interval (no janitor when interval <= 0).
func NewMemoryStore(clock clockwork.Clock, interval time.Duration) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &MemoryStore{
		items: map[string]memEntry{},
		clock: clock,
		stop:  make(chan struct{}),
	}
	if interval > 0 {
		go s.janitor(interval)
	}
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.items {
		if !now.Before(e.expires) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !s.clock.Now().Before(e.expires) {
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	s.mu.Lock()
	s.items[key] = memEntry{val: cp, expires: s.clock.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := s.items[k]; ok {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteMatch(ctx context.Context, prefix string, patterns ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.items {
		if strings.HasPrefix(k, prefix) && matchAny(patterns, k) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

// Len counts live and not-yet-swept entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) Close() error {
	s.stopped.Do(func() { close(s.stop) })
	return nil
}
