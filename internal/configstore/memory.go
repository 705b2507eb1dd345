package configstore

import (
	"context"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu       sync.RWMutex
	sections map[string]map[string]string
	closed   bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{sections: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, section, key string) (string, error) {
	if err := validate(section, key); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	v, ok := m.sections[section][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, section, key, value string) error {
	if err := validate(section, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	s, ok := m.sections[section]
	if !ok {
		s = make(map[string]string)
		m.sections[section] = s
	}
	s[key] = value
	return nil
}

func (m *Memory) Section(_ context.Context, section string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]string, len(m.sections[section]))
	for k, v := range m.sections[section] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ping reports ErrClosed after Close.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}
