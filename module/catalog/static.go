package catalog

import (
	"context"
	"sync"

	"github.com/BaSui01/modulebot/module"
)

// Static is an in-memory catalog. Set and Delete stand in for shipping new
// module code; a following reload or resync picks the change up.
type Static struct {
	mu    sync.RWMutex
	descs []module.Descriptor
}

var _ module.Catalog = (*Static)(nil)

// NewStatic creates a catalog listing descs in the given order.
func NewStatic(descs ...module.Descriptor) *Static {
	s := &Static{}
	for _, d := range descs {
		s.Set(d)
	}
	return s
}

// List returns a copy of the descriptors.
func (s *Static) List(context.Context) ([]module.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]module.Descriptor, len(s.descs))
	copy(out, s.descs)
	return out, nil
}

// Set adds d, or replaces the descriptor with the same name in place.
func (s *Static) Set(d module.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.descs {
		if s.descs[i].Name == d.Name {
			s.descs[i] = d
			return
		}
	}
	s.descs = append(s.descs, d)
}

// Delete removes the named descriptor and reports whether it existed.
func (s *Static) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.descs {
		if s.descs[i].Name == name {
			s.descs = append(s.descs[:i], s.descs[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the descriptor names in catalog order.
func (s *Static) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.descs))
	for i, d := range s.descs {
		out[i] = d.Name
	}
	return out
}
