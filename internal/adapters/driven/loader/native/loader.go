// Package native loads compiled source bundles built as Go plugins. A
// bundle exports NewSource with the signature of Factory.
package native

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sync"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/logger"
)

// BundleSuffix is the file suffix of a compiled bundle.
const BundleSuffix = ".so"

// FactorySymbol is the symbol a bundle must export.
const FactorySymbol = "NewSource"

// Factory builds a source from the shared HTTP client.
type Factory = func(driven.HTTPClient) (driven.Source, error)

// BundlePath returns the bundle file of pkg inside dir.
func BundlePath(dir, pkg string) string { return filepath.Join(dir, pkg+BundleSuffix) }

// opener is plugin.Open, replaceable in tests.
type opener func(path string) (lookup func(string) (plugin.Symbol, error), err error)

func openPlugin(path string) (func(string) (plugin.Symbol, error), error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p.Lookup, nil
}

// Loader implements driven.PackageLoader for compiled bundles. Go cannot
// unload a plugin, so Release only drops the loader's references.
type Loader struct {
	client driven.HTTPClient
	open   opener

	mu      sync.Mutex
	handles map[string]driven.Source
}

var _ driven.PackageLoader = (*Loader)(nil)

// New creates a bundle loader whose sources use client.
func New(client driven.HTTPClient) *Loader {
	return &Loader{client: client, open: openPlugin, handles: make(map[string]driven.Source)}
}

// Kind returns domain.PackageCompiled.
func (l *Loader) Kind() domain.PackageKind { return domain.PackageCompiled }

// Stage writes the bundle.
func (l *Loader) Stage(dir string, rec domain.RegistryRecord, artifact []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create package dir: %w", err)
	}
	if err := os.WriteFile(BundlePath(dir, rec.PkgName), artifact, 0o755); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}

// Validate opens the bundle and checks its factory symbol.
func (l *Loader) Validate(_ context.Context, dir, pkg string) error {
	_, err := l.factory(dir, pkg)
	if errors.Is(err, driven.ErrNoPackage) {
		return domain.ValidationError("package "+pkg+" has no bundle", err)
	}
	return err
}

// Load opens the bundle and builds its source.
func (l *Loader) Load(_ context.Context, dir, pkg string) (driven.Source, error) {
	factory, err := l.factory(dir, pkg)
	if err != nil {
		return nil, err
	}
	src, err := factory(l.client)
	if err != nil {
		return nil, domain.ValidationError("bundle "+pkg+" factory", err)
	}
	if src == nil {
		return nil, domain.ValidationError("bundle "+pkg+" returned no source", nil)
	}

	l.mu.Lock()
	l.handles[pkg] = src
	l.mu.Unlock()
	logger.Debug("native: loaded %s as %s", pkg, src.Descriptor())
	return src, nil
}

// Release drops the source retained for pkg.
func (l *Loader) Release(pkg string) {
	l.mu.Lock()
	delete(l.handles, pkg)
	l.mu.Unlock()
}

// Loaded reports whether a source is retained for pkg.
func (l *Loader) Loaded(pkg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handles[pkg]
	return ok
}

func (l *Loader) factory(dir, pkg string) (Factory, error) {
	path := BundlePath(dir, pkg)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, driven.ErrNoPackage
	}

	lookup, err := l.open(path)
	if err != nil {
		return nil, domain.ValidationError("open bundle "+pkg, err)
	}
	sym, err := lookup(FactorySymbol)
	if err != nil {
		return nil, domain.ValidationError("bundle "+pkg+" does not export "+FactorySymbol, err)
	}

	switch f := sym.(type) {
	case Factory:
		return f, nil
	case *Factory:
		return *f, nil
	}
	return nil, domain.ValidationError(fmt.Sprintf("bundle %s: %s has type %T", pkg, FactorySymbol, sym), nil)
}
