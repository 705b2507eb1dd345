package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/modulebot/module"
)

// ErrUnknownKind is set on descriptors whose manifest names no known kind.
var ErrUnknownKind = errors.New("unknown module kind")

// Kind builds a factory from a manifest's settings.
type Kind func(settings map[string]string) (module.Factory, error)

// Kinds maps kind names to their builders.
type Kinds map[string]Kind

// Manifest is the on-disk description of one module.
//
//	name: greeter
//	kind: greeter
//	version: 1.2.0
//	settings:
//	  channel: "#general"
type Manifest struct {
	Name        string            `yaml:"name"`
	Kind        string            `yaml:"kind"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Settings    map[string]string `yaml:"settings"`
}

// ManifestCatalog lists the *.yaml and *.yml manifests of a directory.
type ManifestCatalog struct {
	dir    string
	kinds  Kinds
	logger *zap.Logger
}

var _ module.Catalog = (*ManifestCatalog)(nil)

// ManifestOption configures a ManifestCatalog.
type ManifestOption func(*ManifestCatalog)

// WithManifestLogger sets the logger.
func WithManifestLogger(logger *zap.Logger) ManifestOption {
	return func(c *ManifestCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewManifestCatalog creates a catalog over dir.
func NewManifestCatalog(dir string, kinds Kinds, opts ...ManifestOption) *ManifestCatalog {
	c := &ManifestCatalog{
		dir:    dir,
		kinds:  kinds,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "manifest_catalog"))
	return c
}

// Dir returns the scanned directory.
func (c *ManifestCatalog) Dir() string { return c.dir }

// List scans the directory. Files that cannot be read or resolved produce a
// descriptor with Err set instead of failing the scan; only an unreadable
// directory is an error.
func (c *ManifestCatalog) List(context.Context) ([]module.Descriptor, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read manifest dir %s: %w", c.dir, err)
	}

	var descs []module.Descriptor
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isManifest(entry.Name()) {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		desc := c.load(path)
		if first, dup := seen[desc.Name]; dup {
			c.logger.Warn("duplicate module name in manifests, keeping the first",
				zap.String("module", desc.Name),
				zap.String("kept", first),
				zap.String("ignored", path))
			continue
		}
		seen[desc.Name] = path
		descs = append(descs, desc)
	}
	return descs, nil
}

func (c *ManifestCatalog) load(path string) module.Descriptor {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return module.Descriptor{Name: stem, Err: fmt.Errorf("read manifest: %w", err)}
	}

	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		c.logger.Warn("malformed module manifest", zap.String("path", path), zap.Error(err))
		return module.Descriptor{Name: stem, Err: fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)}
	}
	if mf.Name == "" {
		mf.Name = stem
	}
	if mf.Kind == "" {
		mf.Kind = mf.Name
	}

	desc := module.Descriptor{Name: mf.Name, Version: mf.Version}
	kind, ok := c.kinds[mf.Kind]
	if !ok {
		desc.Err = fmt.Errorf("%w: %q", ErrUnknownKind, mf.Kind)
		return desc
	}
	factory, err := kind(mf.Settings)
	if err != nil {
		desc.Err = fmt.Errorf("kind %s: %w", mf.Kind, err)
		return desc
	}
	desc.Factory = factory
	return desc
}

func isManifest(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
