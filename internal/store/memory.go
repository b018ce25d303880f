package store

import (
	"context"
	"sync"
)

// MemoryMedium keeps the working document in process memory.
// It counts replacements, which makes repair behaviour observable in tests.
type MemoryMedium struct {
	mu     sync.Mutex
	raw    []byte
	exists bool
	writes int
}

// NewMemoryMedium returns an empty medium (no working document).
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{}
}

func (m *MemoryMedium) Driver() string { return "memory" }

func (m *MemoryMedium) Close() error { return nil }

func (m *MemoryMedium) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.raw...), nil
}

func (m *MemoryMedium) Replace(_ context.Context, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append([]byte(nil), raw...)
	m.exists = true
	m.writes++
	return nil
}

// Set overwrites the document out of band, without counting a write.
func (m *MemoryMedium) Set(raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append([]byte(nil), raw...)
	m.exists = true
}

// Remove deletes the document, as an operator deleting the file would.
func (m *MemoryMedium) Remove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = nil
	m.exists = false
}

// Writes reports how many times Replace succeeded.
func (m *MemoryMedium) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
