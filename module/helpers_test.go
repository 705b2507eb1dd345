package module

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// --- test catalog ---

type testCatalog struct {
	mu      sync.Mutex
	descs   []Descriptor
	scanErr error
	scans   atomic.Int32
}

func newTestCatalog(descs ...Descriptor) *testCatalog {
	return &testCatalog{descs: descs}
}

func (c *testCatalog) List(context.Context) ([]Descriptor, error) {
	c.scans.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scanErr != nil {
		return nil, c.scanErr
	}
	out := make([]Descriptor, len(c.descs))
	copy(out, c.descs)
	return out, nil
}

func (c *testCatalog) set(d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.descs {
		if c.descs[i].Name == d.Name {
			c.descs[i] = d
			return
		}
	}
	c.descs = append(c.descs, d)
}

func (c *testCatalog) drop(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.descs {
		if c.descs[i].Name == name {
			c.descs = append(c.descs[:i], c.descs[i+1:]...)
			return
		}
	}
}

func (c *testCatalog) failScans(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanErr = err
}

// --- test module ---

type testModule struct {
	name    string
	host    Host
	stopErr error
	stopped atomic.Int32
}

func (m *testModule) Stop(context.Context) error {
	m.stopped.Add(1)
	return m.stopErr
}

// spawner builds descriptors and remembers every instance it constructed.
type spawner struct {
	mu        sync.Mutex
	instances []*testModule
	version   string
	newErr    error
	stopErr   error
}

func (s *spawner) descriptor(name string) Descriptor {
	return Descriptor{Name: name, Version: s.version, Factory: s.factory(name)}
}

func (s *spawner) factory(name string) Factory {
	return func(_ context.Context, host Host) (Module, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.newErr != nil {
			return nil, s.newErr
		}
		m := &testModule{name: name, host: host, stopErr: s.stopErr}
		s.instances = append(s.instances, m)
		return m, nil
	}
}

func (s *spawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

func (s *spawner) last() *testModule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.instances) == 0 {
		return nil
	}
	return s.instances[len(s.instances)-1]
}

// --- test host ---

type sentLine struct {
	kind, target, text string
}

type testHost struct {
	mu     sync.Mutex
	sent   []sentLine
	config map[string]string
}

func newTestHost() *testHost {
	return &testHost{config: make(map[string]string)}
}

func (h *testHost) Notice(_ context.Context, target, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentLine{"notice", target, text})
	return nil
}

func (h *testHost) Message(_ context.Context, target, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentLine{"message", target, text})
	return nil
}

func (h *testHost) Config(_ context.Context, section, key string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.config[section+"."+key]
	if !ok {
		return "", ErrConfigNotFound
	}
	return v, nil
}

func (h *testHost) SetConfig(_ context.Context, section, key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config[section+"."+key] = value
	return nil
}

var errBoom = errors.New("boom")
