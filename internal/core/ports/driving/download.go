package driving

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// DownloadQueue tracks chapter retrieval tasks and their live status.
// Task identity is durable; status is kept in memory.
type DownloadQueue interface {
	// Restore loads durable tasks as Queued.
	Restore(ctx context.Context) error

	// AddToQueue enqueues tasks. A duplicate chapter id is a QueueError
	// and nothing is added.
	AddToQueue(ctx context.Context, tasks ...domain.DownloadTask) error

	// RemoveFromQueue removes tasks. An unknown id is a QueueError and
	// nothing is removed.
	RemoveFromQueue(ctx context.Context, chapterIDs ...int64) error

	// ReorderQueue sets each listed task's priority to its index.
	ReorderQueue(ctx context.Context, chapterIDs []int64) error

	// UpdateStatus transitions a task. Completed removes it from the queue.
	// Failed tasks are requeued with RetryFailedDownload only.
	UpdateStatus(ctx context.Context, chapterID int64, state domain.DownloadState) error

	// UpdateProgress records transfer progress of a Downloading task.
	UpdateProgress(chapterID int64, fraction float64, bytesDownloaded, totalBytes int64, speed float64) error

	// PauseAllDownloads moves every Downloading task to Paused.
	PauseAllDownloads() int

	// ResumeAllDownloads moves every Paused task to Queued.
	ResumeAllDownloads() int

	// MarkDownloadFailed moves a Downloading task to Failed.
	MarkDownloadFailed(ctx context.Context, chapterID int64, message string, retryCount int) error

	// RetryFailedDownload moves a Failed task to Queued with progress reset.
	RetryFailedDownload(ctx context.Context, chapterID int64) error

	// GetDownloadQueue returns queued tasks in priority order.
	GetDownloadQueue() []domain.DownloadItem

	// GetStatus returns the live status of a task.
	GetStatus(chapterID int64) (domain.DownloadStatus, bool)

	// GetDownloadStats returns counts per state and transfer totals.
	GetDownloadStats() domain.DownloadStats

	// NextQueued claims the lowest-priority Queued task and marks it
	// Downloading. Returns false when nothing is queued.
	NextQueued(ctx context.Context) (domain.DownloadTask, bool)

	// AddCacheEntry records a fetched chapter.
	AddCacheEntry(ctx context.Context, entry domain.DownloadCacheEntry) error

	// GetCacheEntry returns nil and no error if the chapter is not cached.
	GetCacheEntry(ctx context.Context, chapterID int64) (*domain.DownloadCacheEntry, error)

	// RemoveCacheEntry deletes a cache entry.
	RemoveCacheEntry(ctx context.Context, chapterID int64) error

	// InvalidateCacheEntry marks a cache entry for cleanup.
	InvalidateCacheEntry(ctx context.Context, chapterID int64) error

	// CleanupCache removes invalid cache entries and returns the count.
	CleanupCache(ctx context.Context) (int, error)

	// GetDownloadQueueConfig returns the concurrency and retry policy.
	GetDownloadQueueConfig() domain.DownloadQueueConfig

	// SaveDownloadQueueConfig persists the concurrency and retry policy.
	SaveDownloadQueueConfig(cfg domain.DownloadQueueConfig) error
}

// Downloader drains the download queue with a worker pool.
type Downloader interface {
	// Run processes tasks until ctx is cancelled.
	Run(ctx context.Context) error

	// Drain processes tasks until none is queued or retrying, then returns.
	Drain(ctx context.Context) error
}
