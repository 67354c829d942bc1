package kv

import (
	"maps"
	"strings"
	"sync"
)

// Memory is a Cache held in process memory. The zero value is ready to use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns a Memory cache seeded with values.
func NewMemory(values map[string]string) *Memory {
	m := &Memory{values: make(map[string]string, len(values))}
	maps.Copy(m.values, values)
	return m
}

func (m *Memory) Set(key, value string) error {
	return m.SetAll(map[string]string{key: value})
}

func (m *Memory) Get(key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrKeyRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Remove(key string) error {
	return m.RemoveAll(key)
}

func (m *Memory) SetAll(values map[string]string) error {
	for key := range values {
		if strings.TrimSpace(key) == "" {
			return ErrKeyRequired
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string, len(values))
	}
	maps.Copy(m.values, values)
	return nil
}

func (m *Memory) RemoveAll(keys ...string) error {
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return ErrKeyRequired
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

// Snapshot returns a copy of the current contents.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}
