package store

import (
	"errors"
	"sync"
)

// Store errors.
var (
	// ErrNotFound indicates the key has no stored value.
	ErrNotFound = errors.New("store: key not found")

	// ErrClosed indicates the backend was closed.
	ErrClosed = errors.New("store: backend closed")

	// ErrInvalidValue indicates a stored value could not be decoded.
	ErrInvalidValue = errors.New("store: invalid value")
)

// Backend is the persistent key-value storage behind Settings.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Read returns every key of a namespace. A missing namespace is empty.
	Read(ns string) (map[string][]byte, error)

	// Write stores set and removes del in one operation.
	Write(ns string, set map[string][]byte, del []string) error

	// Drop removes a namespace.
	Drop(ns string) error

	// Close releases backend resources.
	Close() error
}

// MemoryBackend keeps namespaces in memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string][]byte)}
}

// Read returns a copy of the namespace.
func (m *MemoryBackend) Read(ns string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return copyEntries(m.data[ns]), nil
}

// Write applies set and del to the namespace.
func (m *MemoryBackend) Write(ns string, set map[string][]byte, del []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	entries := m.data[ns]
	if entries == nil {
		entries = make(map[string][]byte)
		m.data[ns] = entries
	}
	for _, k := range del {
		delete(entries, k)
	}
	for k, v := range set {
		entries[k] = append([]byte(nil), v...)
	}
	if len(entries) == 0 {
		delete(m.data, ns)
	}
	return nil
}

// Drop removes the namespace.
func (m *MemoryBackend) Drop(ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.data, ns)
	return nil
}

// Close marks the backend closed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyEntries(in map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Compile-time interface satisfaction check.
var _ Backend = (*MemoryBackend)(nil)
