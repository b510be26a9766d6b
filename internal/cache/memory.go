package cache

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache. Expired entries are dropped lazily on
// lookup and by Purge.
type Memory struct {
	clock   clock.Clock
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory creates an in-process cache. clk defaults to the wall clock.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Memory{clock: clk, entries: make(map[string]memoryEntry)}
}

func (m *Memory) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	now := m.clock.Now()

	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && now.Before(e.expiresAt) {
		m.mu.Unlock()
		return e.value, nil
	}
	if ok {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	// Computation runs unlocked; concurrent misses on one key may both compute.
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return value, nil
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
	return value, nil
}

// Purge removes expired entries and returns how many were dropped.
func (m *Memory) Purge(_ context.Context) (int64, error) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
