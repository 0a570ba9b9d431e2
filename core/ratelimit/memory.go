package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counterKey struct {
	policy      string
	key         string
	windowStart int64
}

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory. It suits a single instance.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[counterKey]*counter
	lastPrune time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[counterKey]*counter)}
}

func (s *MemoryStore) IncrementAndCheck(_ context.Context, policy, key string, windowStart time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := NowFunc()
	if now.Sub(s.lastPrune) > time.Minute {
		s.prune(now)
		s.lastPrune = now
	}

	ck := counterKey{policy: policy, key: key, windowStart: windowStart.UnixNano()}
	c, ok := s.counters[ck]
	if !ok {
		c = &counter{expiresAt: windowStart.Add(window)}
		s.counters[ck] = c
	}
	c.count++
	return c.count, nil
}

// Prune drops the counters of elapsed windows.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(NowFunc())
}

func (s *MemoryStore) prune(now time.Time) int {
	var n int
	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
