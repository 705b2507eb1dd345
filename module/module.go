package module

import (
	"context"
	"errors"
)

// Module is a constructed, running module instance.
type Module interface {
	// Stop tears the instance down and releases its resources. It may fail;
	// the manager logs the failure and forgets the instance regardless.
	Stop(ctx context.Context) error
}

// Factory constructs a running instance. The host is the only reference to
// the bot the instance receives.
type Factory func(ctx context.Context, host Host) (Module, error)

// Descriptor is a named, not yet instantiated module unit.
type Descriptor struct {
	Name    string
	Version string
	Factory Factory

	// Err is set by a catalog that found the name but could not resolve a
	// usable factory for it (malformed manifest, unknown kind).
	Err error
}

// Catalog enumerates the descriptors the manager may register.
type Catalog interface {
	// List returns the descriptors in scan order. It must be safe to call
	// repeatedly; each call reflects the catalog's current contents.
	List(ctx context.Context) ([]Descriptor, error)
}

// CatalogFunc adapts a function to the Catalog interface.
type CatalogFunc func(ctx context.Context) ([]Descriptor, error)

// List calls f(ctx).
func (f CatalogFunc) List(ctx context.Context) ([]Descriptor, error) { return f(ctx) }

// Host is the capability-restricted view of the bot handed to instances.
type Host interface {
	// Notice sends a notice to a channel or nick.
	Notice(ctx context.Context, target, text string) error
	// Message sends a regular message to a channel or nick.
	Message(ctx context.Context, target, text string) error
	// Config reads a configuration value. Missing keys return ErrConfigNotFound.
	Config(ctx context.Context, section, key string) (string, error)
	// SetConfig writes a configuration value.
	SetConfig(ctx context.Context, section, key, value string) error
}

// ErrConfigNotFound is returned by Host.Config for keys that are not set.
var ErrConfigNotFound = errors.New("config key not found")

// blacklistCatalog hides blacklisted and underscore-prefixed names.
type blacklistCatalog struct {
	next      Catalog
	blacklist map[string]struct{}
}

func (c *blacklistCatalog) List(ctx context.Context) ([]Descriptor, error) {
	descs, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(descs))
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if d.Name == "" || d.Name[0] == '_' {
			continue
		}
		if _, banned := c.blacklist[d.Name]; banned {
			continue
		}
		// first descriptor wins on duplicate names
		if _, dup := seen[d.Name]; dup {
			continue
		}
		seen[d.Name] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

func (c *blacklistCatalog) lookup(ctx context.Context, name string) (Descriptor, bool, error) {
	descs, err := c.List(ctx)
	if err != nil {
		return Descriptor{}, false, err
	}
	for _, d := range descs {
		if d.Name == name {
			return d, true, nil
		}
	}
	return Descriptor{}, false, nil
}
