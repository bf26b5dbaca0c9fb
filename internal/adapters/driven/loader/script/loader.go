// Package script loads interpreted source packages. A package is a
// JavaScript file that assigns a global `source` object of selector tables
// and an optional search request hook, plus a JSON metadata sidecar written
// at install time from the registry record. Identity always comes from the
// sidecar.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/sources/scraper"
)

// File suffixes of a script package.
const (
	ScriptSuffix   = domain.ScriptExtension
	MetadataSuffix = ".meta.json"
)

// DefaultTimeout bounds a single script evaluation or hook call.
const DefaultTimeout = 2 * time.Second

// ScriptPath returns the script file of pkg inside dir.
func ScriptPath(dir, pkg string) string { return filepath.Join(dir, pkg+ScriptSuffix) }

// MetadataPath returns the sidecar file of pkg inside dir.
func MetadataPath(dir, pkg string) string { return filepath.Join(dir, pkg+MetadataSuffix) }

// Loader implements driven.PackageLoader for script packages.
type Loader struct {
	client  driven.HTTPClient
	timeout time.Duration

	mu      sync.Mutex
	handles map[string]*runtime
}

var _ driven.PackageLoader = (*Loader)(nil)

// New creates a script loader whose sources use client.
func New(client driven.HTTPClient, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Loader{client: client, timeout: timeout, handles: make(map[string]*runtime)}
}

// Kind returns domain.PackageScript.
func (l *Loader) Kind() domain.PackageKind { return domain.PackageScript }

// Stage writes the script and a sidecar built from rec.
func (l *Loader) Stage(dir string, rec domain.RegistryRecord, artifact []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create package dir: %w", err)
	}
	if err := os.WriteFile(ScriptPath(dir, rec.PkgName), artifact, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	meta, err := json.MarshalIndent(rec.Metadata(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(MetadataPath(dir, rec.PkgName), meta, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Validate evaluates the script in a throwaway runtime and checks the
// resulting configuration.
func (l *Loader) Validate(_ context.Context, dir, pkg string) error {
	_, err := l.build(dir, pkg)
	if errors.Is(err, driven.ErrNoPackage) {
		return domain.ValidationError("package "+pkg+" has no script", err)
	}
	return err
}

// Load evaluates the script and returns a scraping source backed by it.
func (l *Loader) Load(_ context.Context, dir, pkg string) (driven.Source, error) {
	rt, err := l.build(dir, pkg)
	if err != nil {
		return nil, err
	}
	src, err := scraper.New(rt.cfg, l.client)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.handles[pkg] = rt
	l.mu.Unlock()
	logger.Debug("script: loaded %s as %s", pkg, src.Descriptor())
	return src, nil
}

// Release drops the runtime of pkg. Hooks of a released package fail.
func (l *Loader) Release(pkg string) {
	l.mu.Lock()
	rt := l.handles[pkg]
	delete(l.handles, pkg)
	l.mu.Unlock()
	if rt != nil {
		rt.close()
	}
}

// Loaded reports whether a runtime is retained for pkg.
func (l *Loader) Loaded(pkg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handles[pkg]
	return ok
}

func (l *Loader) build(dir, pkg string) (*runtime, error) {
	code, err := os.ReadFile(ScriptPath(dir, pkg))
	if errors.Is(err, os.ErrNotExist) {
		return nil, driven.ErrNoPackage
	}
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	meta, err := readMetadata(dir, pkg)
	if err != nil {
		return nil, err
	}

	rt, err := evaluate(pkg, string(code), l.timeout)
	if err != nil {
		return nil, err
	}
	rt.cfg.ID = meta.ID
	rt.cfg.Name = meta.Name
	rt.cfg.Lang = meta.Lang
	rt.cfg.Version = meta.Version
	if err := rt.cfg.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}

func readMetadata(dir, pkg string) (domain.ScriptMetadata, error) {
	var meta domain.ScriptMetadata
	data, err := os.ReadFile(MetadataPath(dir, pkg))
	if err != nil {
		return meta, domain.ValidationError("package "+pkg+" has no metadata", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, domain.ValidationError("package "+pkg+" metadata", err)
	}
	if meta.Name == "" || meta.Lang == "" {
		return meta, domain.ValidationError("package "+pkg+" metadata lacks name or lang", nil)
	}
	if meta.ID == 0 {
		meta.ID = domain.SourceID(meta.Name, meta.Lang, meta.Version)
	}
	return meta, nil
}
