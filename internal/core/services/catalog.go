package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/metrics"
)

// loadedPackage is a package resolved from disk.
type loadedPackage struct {
	entry  domain.CatalogEntry
	source driven.Source
	loader driven.PackageLoader

	// fingerprint identifies the files the source was loaded from.
	fingerprint string
}

// CatalogManager installs, loads and removes provider packages.
// Lifecycle operations on one package are serialized; different
// packages proceed concurrently.
type CatalogManager struct {
	settings domain.CatalogSettings
	registry driven.RegistryClient
	loaders  []driven.PackageLoader
	locks    *keyedMutex

	mu         sync.RWMutex
	bundled    map[string]driven.Source
	local      map[string]*loadedPackage
	system     map[string]*loadedPackage
	tombstones map[string]bool

	// pending maps undeletable paths to their package.
	pending map[string]string

	subsMu sync.RWMutex
	subs   map[string]func(domain.InstallationChange)
}

var _ driving.CatalogManager = (*CatalogManager)(nil)

// NewCatalogManager creates a catalog manager. registry may be nil when
// no registry is configured; Install and Remote then fail.
func NewCatalogManager(
	settings domain.CatalogSettings,
	registry driven.RegistryClient,
	loaders []driven.PackageLoader,
	bundled map[string]driven.Source,
) *CatalogManager {
	if bundled == nil {
		bundled = make(map[string]driven.Source)
	}
	return &CatalogManager{
		settings:   settings,
		registry:   registry,
		loaders:    loaders,
		locks:      newKeyedMutex(),
		bundled:    bundled,
		local:      make(map[string]*loadedPackage),
		system:     make(map[string]*loadedPackage),
		tombstones: make(map[string]bool),
		pending:    make(map[string]string),
		subs:       make(map[string]func(domain.InstallationChange)),
	}
}

func (m *CatalogManager) localDir(pkg string) string {
	return filepath.Join(m.settings.PackagesDir, pkg)
}

func (m *CatalogManager) loaderFor(kind domain.PackageKind) driven.PackageLoader {
	for _, l := range m.loaders {
		if l.Kind() == kind {
			return l
		}
	}
	return nil
}

// Install downloads, stages and validates a package.
func (m *CatalogManager) Install(ctx context.Context, record domain.RegistryRecord) <-chan domain.InstallStep {
	// Idle, Downloading, Installing and a terminal step never block.
	out := make(chan domain.InstallStep, 4)

	go func() {
		defer close(out)
		emit := func(kind domain.InstallStepKind, msg string) {
			out <- domain.InstallStep{Kind: kind, PkgName: record.PkgName, Message: msg}
		}

		src, err := m.install(ctx, record, emit)
		if err != nil {
			logger.Warn("catalog: install %s failed: %v", record.PkgName, err)
			metrics.IncInstall(metrics.OutcomeFailure)
			emit(domain.StepError, domain.FailureMessage(err))
			return
		}

		metrics.IncInstall(metrics.OutcomeSuccess)
		emit(domain.StepSuccess, "")
		m.publish(domain.InstallationChange{
			Kind:     domain.ChangeInstalled,
			PkgName:  record.PkgName,
			SourceID: src.Descriptor().ID,
		})
	}()

	return out
}

func (m *CatalogManager) install(
	ctx context.Context,
	record domain.RegistryRecord,
	emit func(domain.InstallStepKind, string),
) (driven.Source, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if m.registry == nil {
		return nil, domain.NewFailure(domain.ErrInstall, "no registry configured", nil)
	}
	loader := m.loaderFor(record.Kind())
	if loader == nil {
		return nil, fmt.Errorf("%s package: %w", record.Kind(), domain.ErrUnsupportedType)
	}

	unlock, err := m.locks.Lock(ctx, record.PkgName, func() { emit(domain.StepIdle, "") })
	if err != nil {
		return nil, domain.NewFailure(domain.ErrInstall, "waiting for "+record.PkgName, err)
	}
	defer unlock()

	emit(domain.StepDownloading, "")
	artifactURL := record.PkgURL
	if record.Kind() == domain.PackageCompiled {
		artifactURL = record.JarURL
	}
	data, err := m.registry.FetchArtifact(ctx, artifactURL)
	if err != nil {
		return nil, domain.NewFailure(domain.ErrInstall, "download "+record.PkgName, err)
	}

	emit(domain.StepInstalling, "")
	dir := m.localDir(record.PkgName)
	m.replaceExisting(ctx, record.PkgName, dir)

	if err := loader.Stage(dir, record, data); err != nil {
		return nil, domain.NewFailure(domain.ErrInstall, "write "+record.PkgName, err)
	}
	if err := loader.Validate(ctx, dir, record.PkgName); err != nil {
		return nil, err
	}
	src, err := loader.Load(ctx, dir, record.PkgName)
	if err != nil {
		return nil, err
	}

	lp := newLoadedPackage(record.PkgName, domain.OriginInstalled, loader, src, dir)
	m.mu.Lock()
	m.local[record.PkgName] = lp
	if sys, ok := m.system[record.PkgName]; ok && sys.source != nil {
		// The loader handle now belongs to the installed copy.
		sys.entry = shadowedEntry(sys.entry)
		sys.source = nil
	}
	m.mu.Unlock()

	logger.Info("catalog: installed %s as %s", record.PkgName, src.Descriptor())
	return src, nil
}

// replaceExisting releases a previous install and clears its directory
// so no stale artifact of another kind survives. Pending deletions under
// dir are dropped; a reinstall supersedes them.
func (m *CatalogManager) replaceExisting(ctx context.Context, pkg, dir string) {
	m.mu.Lock()
	prev := m.local[pkg]
	delete(m.local, pkg)
	delete(m.tombstones, pkg)
	for path := range m.pending {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			delete(m.pending, path)
		}
	}
	m.mu.Unlock()

	if prev != nil && prev.source != nil {
		m.notifyRemoving(ctx, domain.InstallationChange{
			Kind:     domain.ChangeRemoving,
			PkgName:  pkg,
			SourceID: prev.entry.SourceID(),
		})
		prev.loader.Release(pkg)
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("catalog: clearing %s: %v", dir, err)
	}
}

// Uninstall makes pkg unresolvable and deletes its files. Paths that
// cannot be deleted are retried by SweepPending.
func (m *CatalogManager) Uninstall(ctx context.Context, pkg string) error {
	if !domain.ValidPackageName(pkg) {
		return fmt.Errorf("package name %q: %w", pkg, domain.ErrInvalidInput)
	}
	unlock, err := m.locks.Lock(ctx, pkg, nil)
	if err != nil {
		return domain.NewFailure(domain.ErrUninstall, "waiting for "+pkg, err)
	}
	defer unlock()

	dir := m.localDir(pkg)
	m.mu.RLock()
	lp := m.local[pkg]
	tombstoned := m.tombstones[pkg]
	m.mu.RUnlock()

	if lp == nil && (tombstoned || !exists(dir)) {
		metrics.IncUninstall(metrics.OutcomeFailure)
		return domain.NewFailure(domain.ErrUninstall, "package "+pkg+" is not installed", domain.ErrNotFound)
	}

	var sourceID int64
	if lp != nil {
		sourceID = lp.entry.SourceID()
	}
	m.notifyRemoving(ctx, domain.InstallationChange{Kind: domain.ChangeRemoving, PkgName: pkg, SourceID: sourceID})

	if lp != nil && lp.source != nil {
		lp.loader.Release(pkg)
	}

	m.mu.Lock()
	delete(m.local, pkg)
	m.tombstones[pkg] = true
	m.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("catalog: deferring deletion of %s: %v", dir, err)
		m.mu.Lock()
		m.pending[dir] = pkg
		m.mu.Unlock()
	} else {
		m.mu.Lock()
		delete(m.tombstones, pkg)
		m.mu.Unlock()
	}

	metrics.IncUninstall(metrics.OutcomeSuccess)
	logger.Info("catalog: uninstalled %s", pkg)
	m.publish(domain.InstallationChange{Kind: domain.ChangeUninstalled, PkgName: pkg, SourceID: sourceID})
	return nil
}

// SweepPending retries deferred deletions.
func (m *CatalogManager) SweepPending() int {
	m.mu.RLock()
	paths := make(map[string]string, len(m.pending))
	for path, pkg := range m.pending {
		paths[path] = pkg
	}
	m.mu.RUnlock()

	removed := 0
	for path, pkg := range paths {
		if err := os.RemoveAll(path); err != nil {
			logger.Debug("catalog: %s still pending: %v", path, err)
			continue
		}
		removed++
		m.mu.Lock()
		if _, ok := m.pending[path]; ok {
			delete(m.pending, path)
			delete(m.tombstones, pkg)
		}
		m.mu.Unlock()
	}
	return removed
}

// Pending returns the paths awaiting deletion, sorted.
func (m *CatalogManager) Pending() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.pending))
	for path := range m.pending {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// LoadAll returns bundled, installed and system-wide packages, in that
// order, each sorted by package name.
func (m *CatalogManager) LoadAll(ctx context.Context) ([]domain.CatalogEntry, error) {
	start := time.Now()
	defer logger.Timing("catalog: load all", start)

	entries := m.bundledEntries()

	local, err := m.scan(ctx, m.settings.PackagesDir, domain.OriginInstalled)
	if err != nil {
		return nil, err
	}
	entries = append(entries, local...)

	if m.settings.SystemDir != "" {
		system, err := m.scan(ctx, m.settings.SystemDir, domain.OriginSystemWide)
		if err != nil {
			return nil, err
		}
		entries = append(entries, system...)
	}
	return entries, nil
}

func (m *CatalogManager) bundledEntries() []domain.CatalogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]domain.CatalogEntry, 0, len(m.bundled))
	for pkg, src := range m.bundled {
		d := src.Descriptor()
		entries = append(entries, domain.CatalogEntry{
			PkgName:    pkg,
			Name:       d.Name,
			Lang:       d.Lang,
			Version:    d.Version,
			Kind:       domain.PackageCompiled,
			Origin:     domain.OriginBundled,
			State:      domain.StateLoaded,
			Descriptor: &d,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PkgName < entries[j].PkgName })
	return entries
}

// scan resolves every package directory under root. Packages that left
// the disk are released.
func (m *CatalogManager) scan(ctx context.Context, root string, origin domain.Origin) ([]domain.CatalogEntry, error) {
	dirEntries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		dirEntries = nil
	} else if err != nil {
		return nil, fmt.Errorf("read %s packages: %w", origin, err)
	}

	seen := make(map[string]bool, len(dirEntries))
	var entries []domain.CatalogEntry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		pkg := de.Name()
		seen[pkg] = true
		entry, err := m.resolve(ctx, origin, pkg)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	m.forget(origin, seen)
	return entries, nil
}

// forget releases packages of origin whose directories are gone.
func (m *CatalogManager) forget(origin domain.Origin, seen map[string]bool) {
	m.mu.Lock()
	loaded := m.packages(origin)
	var gone []*loadedPackage
	for pkg, lp := range loaded {
		if !seen[pkg] {
			delete(loaded, pkg)
			gone = append(gone, lp)
		}
	}
	m.mu.Unlock()

	for _, lp := range gone {
		if lp.source != nil {
			lp.loader.Release(lp.entry.PkgName)
		}
		logger.Debug("catalog: %s package %s left the disk", origin, lp.entry.PkgName)
	}
}

// packages returns the map for origin. Callers hold m.mu.
func (m *CatalogManager) packages(origin domain.Origin) map[string]*loadedPackage {
	if origin == domain.OriginSystemWide {
		return m.system
	}
	return m.local
}

func (m *CatalogManager) rootFor(origin domain.Origin) string {
	if origin == domain.OriginSystemWide {
		return m.settings.SystemDir
	}
	return m.settings.PackagesDir
}

// resolve returns the entry of pkg under origin, loading it if needed.
// Returns nil when the directory holds no package.
func (m *CatalogManager) resolve(ctx context.Context, origin domain.Origin, pkg string) (*domain.CatalogEntry, error) {
	m.mu.RLock()
	lp := m.packages(origin)[pkg]
	tombstoned := origin == domain.OriginInstalled && m.tombstones[pkg]
	_, installed := m.local[pkg]
	m.mu.RUnlock()

	if tombstoned {
		return nil, nil
	}
	if lp != nil && lp.entry.State == domain.StateLoaded {
		entry := lp.entry
		return &entry, nil
	}

	// A lifecycle operation owns the package; report what is known.
	unlock, ok := m.locks.TryLock(pkg)
	if !ok {
		if lp != nil {
			entry := lp.entry
			return &entry, nil
		}
		return nil, nil
	}
	defer unlock()

	dir := filepath.Join(m.rootFor(origin), pkg)
	if origin == domain.OriginSystemWide && installed {
		entry := shadowedEntry(domain.CatalogEntry{PkgName: pkg, Name: pkg, Origin: origin})
		m.mu.Lock()
		m.system[pkg] = &loadedPackage{entry: entry}
		m.mu.Unlock()
		return &entry, nil
	}

	loaded, err := m.load(ctx, origin, pkg, dir)
	if errors.Is(err, driven.ErrNoPackage) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.packages(origin)[pkg] = loaded
	m.mu.Unlock()
	entry := loaded.entry
	return &entry, nil
}

// load tries each loader in turn. A package that fails to load yields a
// failed entry rather than an error.
func (m *CatalogManager) load(ctx context.Context, origin domain.Origin, pkg, dir string) (*loadedPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, l := range m.loaders {
		src, err := l.Load(ctx, dir, pkg)
		if errors.Is(err, driven.ErrNoPackage) {
			continue
		}
		if err != nil {
			logger.Warn("catalog: loading %s: %v", pkg, err)
			return &loadedPackage{
				loader:      l,
				fingerprint: fingerprint(dir),
				entry: domain.CatalogEntry{
					PkgName: pkg,
					Name:    pkg,
					Kind:    l.Kind(),
					Origin:  origin,
					State:   domain.StateFailed,
					Error:   domain.FailureMessage(err),
				},
			}, nil
		}
		return newLoadedPackage(pkg, origin, l, src, dir), nil
	}
	return nil, driven.ErrNoPackage
}

func newLoadedPackage(pkg string, origin domain.Origin, l driven.PackageLoader, src driven.Source, dir string) *loadedPackage {
	d := src.Descriptor()
	return &loadedPackage{
		source:      src,
		loader:      l,
		fingerprint: fingerprint(dir),
		entry: domain.CatalogEntry{
			PkgName:    pkg,
			Name:       d.Name,
			Lang:       d.Lang,
			Version:    d.Version,
			Kind:       l.Kind(),
			Origin:     origin,
			State:      domain.StateLoaded,
			Descriptor: &d,
		},
	}
}

func shadowedEntry(e domain.CatalogEntry) domain.CatalogEntry {
	e.State = domain.StateUnloaded
	e.Descriptor = nil
	e.Error = "shadowed by installed package"
	return e
}

// LoadLocal returns the installed package, or nil if absent.
func (m *CatalogManager) LoadLocal(ctx context.Context, pkg string) (*domain.CatalogEntry, error) {
	if !domain.ValidPackageName(pkg) {
		return nil, nil
	}
	return m.resolve(ctx, domain.OriginInstalled, pkg)
}

// LoadSystemWide returns the system-wide package, or nil if absent.
func (m *CatalogManager) LoadSystemWide(ctx context.Context, pkg string) (*domain.CatalogEntry, error) {
	if m.settings.SystemDir == "" || !domain.ValidPackageName(pkg) {
		return nil, nil
	}
	if !exists(filepath.Join(m.settings.SystemDir, pkg)) {
		return nil, nil
	}
	return m.resolve(ctx, domain.OriginSystemWide, pkg)
}

// Remote returns the registry index annotated with local install state.
func (m *CatalogManager) Remote(ctx context.Context) ([]domain.RemotePackage, error) {
	if m.registry == nil {
		return nil, fmt.Errorf("no registry configured: %w", domain.ErrInvalidInput)
	}
	records, err := m.registry.FetchIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch registry index: %w", err)
	}

	out := make([]domain.RemotePackage, 0, len(records))
	for _, rec := range records {
		rp := domain.RemotePackage{Record: rec}
		entry, err := m.LoadLocal(ctx, rec.PkgName)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			rp.Installed = true
			rp.HasUpdate = entry.State == domain.StateLoaded && rec.Version > entry.Version
		}
		out = append(out, rp)
	}
	return out, nil
}

// Sources returns every loaded source de-duplicated by ID. Installed
// packages take precedence over system-wide ones, which take precedence
// over bundled ones.
func (m *CatalogManager) Sources() []driven.Source {
	m.mu.RLock()
	var candidates []driven.Source
	for _, group := range []map[string]*loadedPackage{m.local, m.system} {
		for _, pkg := range sortedKeys(group) {
			if src := group[pkg].source; src != nil {
				candidates = append(candidates, src)
			}
		}
	}
	for _, pkg := range sortedKeys(m.bundled) {
		candidates = append(candidates, m.bundled[pkg])
	}
	m.mu.RUnlock()

	seen := make(map[int64]bool, len(candidates))
	out := make([]driven.Source, 0, len(candidates))
	for _, src := range candidates {
		id := src.Descriptor().ID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, src)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Descriptor().Name < out[j].Descriptor().Name
	})
	return out
}

// Source returns a loaded source by ID.
func (m *CatalogManager) Source(id int64) (driven.Source, error) {
	for _, src := range m.Sources() {
		if src.Descriptor().ID == id {
			return src, nil
		}
	}
	return nil, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
}

// Subscribe registers fn for installation changes.
func (m *CatalogManager) Subscribe(fn func(domain.InstallationChange)) func() {
	id := uuid.NewString()
	m.subsMu.Lock()
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *CatalogManager) subscribers() []func(domain.InstallationChange) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	out := make([]func(domain.InstallationChange), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}

// publish delivers change to every subscriber in turn.
func (m *CatalogManager) publish(change domain.InstallationChange) {
	for _, fn := range m.subscribers() {
		fn(change)
	}
}

// notifyRemoving delivers change to every subscriber concurrently and
// waits until all have returned, the release grace elapses, or ctx is
// done.
func (m *CatalogManager) notifyRemoving(ctx context.Context, change domain.InstallationChange) {
	subs := m.subscribers()
	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, fn := range subs {
		wg.Add(1)
		go func(fn func(domain.InstallationChange)) {
			defer wg.Done()
			fn(change)
		}(fn)
	}

	acked := make(chan struct{})
	go func() {
		wg.Wait()
		close(acked)
	}()

	grace := m.settings.ReleaseGrace
	if grace <= 0 {
		grace = domain.DefaultAppSettings().Catalog.ReleaseGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-acked:
	case <-timer.C:
		logger.Warn("catalog: subscribers still hold %s after %s", change.PkgName, grace)
	case <-ctx.Done():
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fingerprint summarizes the names, sizes and modification times of the
// files in dir. Returns "" when dir cannot be read.
func fingerprint(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s:%d:%d;", e.Name(), info.Size(), info.ModTime().UnixNano())
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
