package store

import (
	"context"
	"sync"
)

var _ KV = (*MemoryKV)(nil)

// MemoryKV is an in-process KV. SaveErr, when set, fails every Save.
type MemoryKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	SaveErr error
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Load returns a copy of the stored blob.
func (m *MemoryKV) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Save stores a copy of blob.
func (m *MemoryKV) Save(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data[key] = append([]byte(nil), blob...)
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryKV) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
