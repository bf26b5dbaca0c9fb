package driving

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
)

// CatalogManager installs, loads and removes provider packages at runtime.
type CatalogManager interface {
	// Install downloads and validates a package from its registry record.
	// The returned channel yields Downloading, Installing and then Success
	// or Error before closing. Idle is yielded while another lifecycle
	// operation on the same package holds its lock.
	Install(ctx context.Context, record domain.RegistryRecord) <-chan domain.InstallStep

	// Uninstall notifies subscribers, releases handles and deletes the
	// package directory. It succeeds once the package no longer resolves,
	// even if some files are left for deferred deletion.
	Uninstall(ctx context.Context, pkg string) error

	// LoadAll returns bundled, locally installed and system-wide packages.
	LoadAll(ctx context.Context) ([]domain.CatalogEntry, error)

	// LoadLocal returns the locally installed package, or nil if absent.
	LoadLocal(ctx context.Context, pkg string) (*domain.CatalogEntry, error)

	// LoadSystemWide returns the system-wide package, or nil if absent.
	LoadSystemWide(ctx context.Context, pkg string) (*domain.CatalogEntry, error)

	// Remote returns the registry index annotated with local install state.
	Remote(ctx context.Context) ([]domain.RemotePackage, error)

	// Sources returns every loaded source, de-duplicated by ID.
	Sources() []driven.Source

	// Source returns a loaded source by ID.
	// Returns domain.ErrNotFound if no loaded source has that ID.
	Source(id int64) (driven.Source, error)

	// Subscribe registers fn for installation changes. Removing changes
	// are delivered synchronously; fn must release references before
	// returning. The returned func cancels the subscription.
	Subscribe(fn func(domain.InstallationChange)) (unsubscribe func())

	// SweepPending retries deferred deletions and returns how many paths
	// were removed.
	SweepPending() int

	// Watch reloads packages changed on disk until ctx is cancelled.
	Watch(ctx context.Context) error
}
