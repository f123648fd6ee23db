package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps namespaces in process memory. It never persists and
// is always available.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Connect(ctx context.Context, create bool) error {
	return nil
}

func (m *MemoryBackend) EnsureNamespace(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[namespace]; !ok {
		m.data[namespace] = make(map[string][]byte)
	}
	return nil
}

func (m *MemoryBackend) bucket(namespace string) map[string][]byte {
	b, ok := m.data[namespace]
	if !ok {
		b = make(map[string][]byte)
		m.data[namespace] = b
	}
	return b
}

func (m *MemoryBackend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace][key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(namespace)[key] = cloneBytes(value)
	return nil
}

func (m *MemoryBackend) SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(namespace)
	if _, ok := b[key]; ok {
		return false, nil
	}
	b[key] = cloneBytes(value)
	return true, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[namespace], key)
	return nil
}

func (m *MemoryBackend) Has(ctx context.Context, namespace, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[namespace][key]
	return ok, nil
}

func (m *MemoryBackend) Keys(ctx context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Clear(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespace)
	return nil
}

func (m *MemoryBackend) Close(ctx context.Context) error {
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
