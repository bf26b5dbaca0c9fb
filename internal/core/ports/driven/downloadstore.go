package driven

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// DownloadStore persists the download queue and cache entries. The queue
// holds ChapterID, BookID and Priority. The fetch fields of a task are
// kept in a separate chapter record that outlives the task.
type DownloadStore interface {
	// SaveTasks inserts or updates tasks keyed by ChapterID together with
	// their chapter records.
	SaveTasks(ctx context.Context, tasks ...domain.DownloadTask) error

	// DeleteTasks removes tasks. Unknown ids are ignored.
	DeleteTasks(ctx context.Context, chapterIDs ...int64) error

	// ListTasks returns all tasks ordered by priority, then chapter id,
	// with fetch fields filled from their chapter records.
	ListTasks(ctx context.Context) ([]domain.DownloadTask, error)

	// SaveCacheEntry inserts or replaces a cache entry.
	SaveCacheEntry(ctx context.Context, entry domain.DownloadCacheEntry) error

	// GetCacheEntry returns nil and no error if the entry does not exist.
	GetCacheEntry(ctx context.Context, chapterID int64) (*domain.DownloadCacheEntry, error)

	// DeleteCacheEntry removes an entry. Unknown ids are ignored.
	DeleteCacheEntry(ctx context.Context, chapterID int64) error

	// InvalidateCacheEntry clears the validity flag.
	// Returns domain.ErrNotFound if the entry does not exist.
	InvalidateCacheEntry(ctx context.Context, chapterID int64) error

	// DeleteInvalidCacheEntries removes every invalid entry and returns
	// how many were removed.
	DeleteInvalidCacheEntries(ctx context.Context) (int, error)

	// ListCacheEntries returns all entries ordered by chapter id.
	ListCacheEntries(ctx context.Context) ([]domain.DownloadCacheEntry, error)
}
