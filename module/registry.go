package module

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// instance is a running module together with its bookkeeping.
type instance struct {
	id        uuid.UUID
	module    Module
	host      *scopedHost
	version   string
	enabledAt time.Time
}

// Info describes one registered module.
type Info struct {
	Name       string    `json:"name"`
	Version    string    `json:"version,omitempty"`
	State      State     `json:"state"`
	InstanceID string    `json:"instance_id,omitempty"`
	EnabledAt  time.Time `json:"enabled_at,omitzero"`
}

// registry holds the available and enabled mappings. The manager mutates a
// private working copy and publishes clones, so a published registry is
// never written to again.
type registry struct {
	available map[string]Descriptor
	enabled   map[string]*instance
}

func newRegistry() *registry {
	return &registry{
		available: make(map[string]Descriptor),
		enabled:   make(map[string]*instance),
	}
}

func (r *registry) clone() *registry {
	c := &registry{
		available: make(map[string]Descriptor, len(r.available)),
		enabled:   make(map[string]*instance, len(r.enabled)),
	}
	for k, v := range r.available {
		c.available[k] = v
	}
	for k, v := range r.enabled {
		c.enabled[k] = v
	}
	return c
}

func (r *registry) state(name string) State {
	if _, ok := r.enabled[name]; ok {
		return StateEnabled
	}
	if _, ok := r.available[name]; ok {
		return StateAvailable
	}
	return StateUnknown
}

func (r *registry) isAvailable(name string) bool {
	_, ok := r.available[name]
	return ok
}

func (r *registry) isEnabled(name string) bool {
	_, ok := r.enabled[name]
	return ok
}

func (r *registry) availableNames() []string {
	return sortedKeys(r.available)
}

func (r *registry) enabledNames() []string {
	return sortedKeys(r.enabled)
}

func (r *registry) disabledNames() []string {
	var out []string
	for name := range r.available {
		if _, running := r.enabled[name]; !running {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *registry) info(name string) (Info, bool) {
	desc, ok := r.available[name]
	if !ok {
		return Info{}, false
	}
	info := Info{Name: name, Version: desc.Version, State: StateAvailable}
	if inst, running := r.enabled[name]; running {
		info.State = StateEnabled
		info.InstanceID = inst.id.String()
		info.EnabledAt = inst.enabledAt
		if inst.version != "" {
			info.Version = inst.version
		}
	}
	return info, true
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
