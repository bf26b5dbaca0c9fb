package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/logger"
)

// watchDebounce coalesces bursts of file events into one reload.
const watchDebounce = 200 * time.Millisecond

// Watch reloads installed packages whose files change on disk until ctx
// is cancelled. Packages dropped into the packages directory are loaded
// and announced as installed; removed ones are released and announced as
// uninstalled.
func (m *CatalogManager) Watch(ctx context.Context) error {
	root := m.settings.PackagesDir
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create packages dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read packages dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fsw.Add(filepath.Join(root, e.Name())); err != nil {
				logger.Warn("catalog: cannot watch %s: %v", e.Name(), err)
			}
		}
	}

	var (
		mu    sync.Mutex
		dirty = make(map[string]bool)
		timer *time.Timer
		fire  = make(chan struct{}, 1)
	)
	schedule := func(pkg string) {
		mu.Lock()
		defer mu.Unlock()
		dirty[pkg] = true
		if timer != nil {
			timer.Reset(watchDebounce)
			return
		}
		timer = time.AfterFunc(watchDebounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	logger.Debug("catalog: watching %s", root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			pkg := packageOf(root, event.Name)
			if pkg == "" {
				continue
			}
			if event.Has(fsnotify.Create) && event.Name == filepath.Join(root, pkg) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				schedule(pkg)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("catalog: watcher: %v", err)
		case <-fire:
			mu.Lock()
			pkgs := sortedKeys(dirty)
			dirty = make(map[string]bool)
			timer = nil
			mu.Unlock()
			for _, pkg := range pkgs {
				m.refresh(ctx, pkg)
			}
		}
	}
}

// packageOf returns the package directory name an event path belongs to.
func packageOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	pkg := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if !domain.ValidPackageName(pkg) {
		return ""
	}
	return pkg
}

// refresh reconciles one installed package with the disk.
func (m *CatalogManager) refresh(ctx context.Context, pkg string) {
	unlock, err := m.locks.Lock(ctx, pkg, nil)
	if err != nil {
		return
	}
	defer unlock()

	m.mu.RLock()
	cur := m.local[pkg]
	tombstoned := m.tombstones[pkg]
	m.mu.RUnlock()
	if tombstoned {
		return
	}

	dir := m.localDir(pkg)
	fp := fingerprint(dir)
	if cur != nil && cur.fingerprint == fp {
		return
	}

	if cur != nil {
		if cur.source != nil {
			m.notifyRemoving(ctx, domain.InstallationChange{
				Kind:     domain.ChangeRemoving,
				PkgName:  pkg,
				SourceID: cur.entry.SourceID(),
			})
			cur.loader.Release(pkg)
		}
		m.mu.Lock()
		delete(m.local, pkg)
		m.mu.Unlock()
	}

	loaded, err := m.load(ctx, domain.OriginInstalled, pkg, dir)
	if err != nil {
		if cur != nil && cur.source != nil {
			logger.Info("catalog: %s removed from disk", pkg)
			m.publish(domain.InstallationChange{Kind: domain.ChangeUninstalled, PkgName: pkg, SourceID: cur.entry.SourceID()})
		}
		return
	}

	m.mu.Lock()
	m.local[pkg] = loaded
	m.mu.Unlock()

	if loaded.source != nil {
		logger.Info("catalog: reloaded %s", pkg)
		m.publish(domain.InstallationChange{Kind: domain.ChangeInstalled, PkgName: pkg, SourceID: loaded.entry.SourceID()})
	}
}
