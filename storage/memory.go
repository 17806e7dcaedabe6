package storage

import (
	"context"
	"sync"
)

// Memory is an in-process KV, used for per-tab ephemeral storage and in tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}

// Len returns the number of stored keys
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// MemoryPartitions is a Partitioner of Memory stores, created on first use.
type MemoryPartitions struct {
	mu    sync.Mutex
	parts map[string]*Memory
}

func NewMemoryPartitions() *MemoryPartitions {
	return &MemoryPartitions{parts: make(map[string]*Memory)}
}

func (p *MemoryPartitions) Partition(name string) KV {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.parts[name]
	if !ok {
		m = NewMemory()
		p.parts[name] = m
	}
	return m
}
