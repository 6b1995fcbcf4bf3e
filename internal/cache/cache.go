// Package cache defines the key-value store the index and API layers write through.
package cache

import (
	"context"
	"sync"
	"time"
)

type Cache interface {
	// Get returns the stored value, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type item struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped on read and by Sweep.
type Memory struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]item{}, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(it.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		delete(m.items, key)
		return nil
	}
	m.items[key] = item{value: append([]byte(nil), value...), expiresAt: m.now().Add(ttl)}
	return nil
}

// Sweep removes expired entries and reports how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, it := range m.items {
		if !now.Before(it.expiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
