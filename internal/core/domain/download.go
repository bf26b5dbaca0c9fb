package domain

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"
)

// DownloadTask is the durable identity of a chapter retrieval request.
// ChapterID, BookID and Priority are the queue state. The remaining
// fields describe how to fetch the chapter and are kept with the chapter
// record, not the queue.
type DownloadTask struct {
	ChapterID int64
	BookID    int64

	// Priority orders the queue; lower values are dequeued first.
	Priority int

	// Fetch fields.
	SourceID     int64
	ChapterKey   string
	ChapterTitle string
	BookTitle    string
}

// ChapterID derives a stable chapter id from its source and key.
func ChapterID(sourceID int64, key string) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d/%s", sourceID, key)
	return int64(h.Sum64() & math.MaxInt64)
}

// BookID derives a stable book id from its source and key.
func BookID(sourceID int64, key string) int64 {
	return ChapterID(sourceID, "book:"+key)
}

// DownloadState is the live state of a download task.
type DownloadState string

// Download states.
const (
	DownloadQueued      DownloadState = "queued"
	DownloadDownloading DownloadState = "downloading"
	DownloadPaused      DownloadState = "paused"
	DownloadCompleted   DownloadState = "completed"
	DownloadFailed      DownloadState = "failed"
)

// CanTransition reports whether a task may move from s to next.
func (s DownloadState) CanTransition(next DownloadState) bool {
	switch s {
	case DownloadQueued:
		return next == DownloadDownloading
	case DownloadDownloading:
		return next == DownloadCompleted || next == DownloadFailed || next == DownloadPaused
	case DownloadPaused:
		return next == DownloadQueued
	case DownloadFailed:
		return next == DownloadQueued
	}
	return false
}

// DownloadStatus is the live status of one task. It is kept in memory only.
type DownloadStatus struct {
	ChapterID int64
	State     DownloadState

	// Progress is a fraction in [0, 1].
	Progress        float64
	BytesDownloaded int64
	TotalBytes      int64

	// Speed is in bytes per second.
	Speed        float64
	ErrorMessage string
	RetryCount   int
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// DownloadItem pairs a queued task with its live status.
type DownloadItem struct {
	Task   DownloadTask
	Status DownloadStatus
}

// DownloadCacheEntry records a previously fetched chapter.
type DownloadCacheEntry struct {
	ChapterID int64
	Path      string
	Valid     bool
	CachedAt  time.Time
}

// DownloadStats aggregates queue state.
type DownloadStats struct {
	Queued      int
	Downloading int
	Paused      int
	Completed   int
	Failed      int

	TotalBytes    int64
	TotalDuration time.Duration
}

// Total returns the number of tracked tasks.
func (s DownloadStats) Total() int {
	return s.Queued + s.Downloading + s.Paused + s.Completed + s.Failed
}

// AverageSpeed returns bytes per second over all finished work.
func (s DownloadStats) AverageSpeed() float64 {
	if s.TotalDuration <= 0 {
		return 0
	}
	return float64(s.TotalBytes) / s.TotalDuration.Seconds()
}

// DownloadQueueConfig holds the concurrency limit and retry policy.
type DownloadQueueConfig struct {
	MaxConcurrent int
	MaxRetries    int
	RetryDelay    time.Duration
	AutoRetry     bool
}

// DefaultDownloadQueueConfig returns sensible defaults for the queue.
func DefaultDownloadQueueConfig() DownloadQueueConfig {
	return DownloadQueueConfig{
		MaxConcurrent: 3,
		MaxRetries:    3,
		RetryDelay:    5 * time.Second,
		AutoRetry:     true,
	}
}
