package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/metrics"
)

// QueueConfigStore persists the queue policy. SettingsService implements it.
type QueueConfigStore interface {
	GetDownloadQueueConfig() domain.DownloadQueueConfig
	SaveDownloadQueueConfig(cfg domain.DownloadQueueConfig) error
}

// DownloadQueue tracks chapter retrieval tasks. Task identity is written
// through to the store; live status is kept in memory.
type DownloadQueue struct {
	store  driven.DownloadStore
	config QueueConfigStore
	now    func() time.Time

	mu     sync.Mutex
	tasks  map[int64]domain.DownloadTask
	status map[int64]*domain.DownloadStatus

	// Totals of completed tasks.
	completedBytes    int64
	completedDuration time.Duration
}

var _ driving.DownloadQueue = (*DownloadQueue)(nil)

// NewDownloadQueue creates a queue over store. config may be nil, in
// which case the default policy is used and saves are kept in memory.
func NewDownloadQueue(store driven.DownloadStore, config QueueConfigStore) *DownloadQueue {
	if config == nil {
		config = &memoryQueueConfig{cfg: domain.DefaultDownloadQueueConfig()}
	}
	return &DownloadQueue{
		store:  store,
		config: config,
		now:    time.Now,
		tasks:  make(map[int64]domain.DownloadTask),
		status: make(map[int64]*domain.DownloadStatus),
	}
}

// Restore loads durable tasks as Queued. Tasks already tracked keep
// their live status.
func (q *DownloadQueue) Restore(ctx context.Context) error {
	tasks, err := q.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("restore download queue: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	restored := 0
	for _, t := range tasks {
		if _, ok := q.tasks[t.ChapterID]; ok {
			continue
		}
		q.tasks[t.ChapterID] = t
		q.status[t.ChapterID] = q.newStatus(t.ChapterID)
		restored++
	}
	q.updateGauges()
	logger.Debug("downloads: restored %d tasks", restored)
	return nil
}

func (q *DownloadQueue) newStatus(chapterID int64) *domain.DownloadStatus {
	return &domain.DownloadStatus{ChapterID: chapterID, State: domain.DownloadQueued, UpdatedAt: q.now()}
}

// AddToQueue enqueues tasks atomically.
func (q *DownloadQueue) AddToQueue(ctx context.Context, tasks ...domain.DownloadTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		if _, ok := q.tasks[t.ChapterID]; ok || seen[t.ChapterID] {
			return domain.QueueError("chapter %d is already queued", t.ChapterID)
		}
		seen[t.ChapterID] = true
	}

	if err := q.store.SaveTasks(ctx, tasks...); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	for _, t := range tasks {
		q.tasks[t.ChapterID] = t
		q.status[t.ChapterID] = q.newStatus(t.ChapterID)
		metrics.IncTransition(string(domain.DownloadQueued))
	}
	q.updateGauges()
	return nil
}

// RemoveFromQueue removes tasks atomically.
func (q *DownloadQueue) RemoveFromQueue(ctx context.Context, chapterIDs ...int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range chapterIDs {
		if _, ok := q.tasks[id]; !ok {
			return domain.QueueError("chapter %d is not queued", id)
		}
	}

	if err := q.store.DeleteTasks(ctx, chapterIDs...); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	for _, id := range chapterIDs {
		delete(q.tasks, id)
		delete(q.status, id)
	}
	q.updateGauges()
	return nil
}

// ReorderQueue sets each listed task's priority to its index in ids.
func (q *DownloadQueue) ReorderQueue(ctx context.Context, chapterIDs []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[int64]bool, len(chapterIDs))
	updated := make([]domain.DownloadTask, 0, len(chapterIDs))
	for i, id := range chapterIDs {
		t, ok := q.tasks[id]
		if !ok {
			return domain.QueueError("chapter %d is not queued", id)
		}
		if seen[id] {
			return domain.QueueError("chapter %d is listed twice", id)
		}
		seen[id] = true
		t.Priority = i
		updated = append(updated, t)
	}

	if err := q.store.SaveTasks(ctx, updated...); err != nil {
		return fmt.Errorf("save priorities: %w", err)
	}
	for _, t := range updated {
		q.tasks[t.ChapterID] = t
	}
	return nil
}

// UpdateStatus transitions a task. Completed removes it from the queue.
// A failed task is requeued only through RetryFailedDownload.
func (q *DownloadQueue) UpdateStatus(ctx context.Context, chapterID int64, state domain.DownloadState) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, err := q.transition(chapterID, state)
	if err != nil {
		return err
	}
	if st.State == domain.DownloadFailed {
		return domain.QueueError("chapter %d has failed; retry it instead", chapterID)
	}

	if state == domain.DownloadCompleted {
		if err := q.store.DeleteTasks(ctx, chapterID); err != nil {
			return fmt.Errorf("delete completed task: %w", err)
		}
		delete(q.tasks, chapterID)
		if !st.StartedAt.IsZero() {
			q.completedDuration += q.now().Sub(st.StartedAt)
		}
		q.completedBytes += st.BytesDownloaded
		st.Progress = 1
	}
	q.apply(st, state)
	return nil
}

// transition checks that chapterID may move to next. Callers hold q.mu.
func (q *DownloadQueue) transition(chapterID int64, next domain.DownloadState) (*domain.DownloadStatus, error) {
	st, ok := q.status[chapterID]
	if !ok || st.State == domain.DownloadCompleted {
		return nil, domain.QueueError("chapter %d is not queued", chapterID)
	}
	if !st.State.CanTransition(next) {
		return nil, domain.QueueError("chapter %d cannot move from %s to %s", chapterID, st.State, next)
	}
	return st, nil
}

// apply sets the new state. Callers hold q.mu.
func (q *DownloadQueue) apply(st *domain.DownloadStatus, state domain.DownloadState) {
	st.State = state
	st.UpdatedAt = q.now()
	if state == domain.DownloadDownloading {
		st.StartedAt = st.UpdatedAt
	}
	metrics.IncTransition(string(state))
	q.updateGauges()
}

func resetProgress(st *domain.DownloadStatus) {
	st.Progress = 0
	st.BytesDownloaded = 0
	st.TotalBytes = 0
	st.Speed = 0
	st.ErrorMessage = ""
}

// UpdateProgress records transfer progress of a Downloading task.
func (q *DownloadQueue) UpdateProgress(chapterID int64, fraction float64, bytesDownloaded, totalBytes int64, speed float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.status[chapterID]
	if !ok || st.State != domain.DownloadDownloading {
		return domain.QueueError("chapter %d is not downloading", chapterID)
	}
	st.Progress = min(max(fraction, 0), 1)
	st.BytesDownloaded = bytesDownloaded
	st.TotalBytes = totalBytes
	st.Speed = speed
	st.UpdatedAt = q.now()
	return nil
}

// PauseAllDownloads moves every Downloading task to Paused.
func (q *DownloadQueue) PauseAllDownloads() int {
	return q.moveAll(domain.DownloadDownloading, domain.DownloadPaused)
}

// ResumeAllDownloads moves every Paused task to Queued.
func (q *DownloadQueue) ResumeAllDownloads() int {
	return q.moveAll(domain.DownloadPaused, domain.DownloadQueued)
}

func (q *DownloadQueue) moveAll(from, to domain.DownloadState) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, st := range q.status {
		if st.State == from {
			q.apply(st, to)
			n++
		}
	}
	return n
}

// MarkDownloadFailed moves a Downloading task to Failed.
func (q *DownloadQueue) MarkDownloadFailed(_ context.Context, chapterID int64, message string, retryCount int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, err := q.transition(chapterID, domain.DownloadFailed)
	if err != nil {
		return err
	}
	st.ErrorMessage = message
	st.RetryCount = retryCount
	st.Speed = 0
	q.apply(st, domain.DownloadFailed)
	return nil
}

// RetryFailedDownload moves a Failed task to Queued with progress reset.
func (q *DownloadQueue) RetryFailedDownload(_ context.Context, chapterID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.status[chapterID]
	if !ok || st.State != domain.DownloadFailed {
		return domain.QueueError("chapter %d has not failed", chapterID)
	}
	resetProgress(st)
	q.apply(st, domain.DownloadQueued)
	return nil
}

// GetDownloadQueue returns queued tasks ordered by priority, then id.
func (q *DownloadQueue) GetDownloadQueue() []domain.DownloadItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]domain.DownloadItem, 0, len(q.tasks))
	for id, t := range q.tasks {
		items = append(items, domain.DownloadItem{Task: t, Status: *q.status[id]})
	}
	sort.Slice(items, func(i, j int) bool {
		return taskLess(items[i].Task, items[j].Task)
	})
	return items
}

func taskLess(a, b domain.DownloadTask) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.ChapterID < b.ChapterID
}

// GetStatus returns the live status of a task, including completed ones.
func (q *DownloadQueue) GetStatus(chapterID int64) (domain.DownloadStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.status[chapterID]
	if !ok {
		return domain.DownloadStatus{}, false
	}
	return *st, true
}

// GetDownloadStats returns counts per state and transfer totals.
func (q *DownloadQueue) GetDownloadStats() domain.DownloadStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats()
}

// stats counts states. Callers hold q.mu.
func (q *DownloadQueue) stats() domain.DownloadStats {
	s := domain.DownloadStats{
		TotalBytes:    q.completedBytes,
		TotalDuration: q.completedDuration,
	}
	for _, st := range q.status {
		switch st.State {
		case domain.DownloadQueued:
			s.Queued++
		case domain.DownloadDownloading:
			s.Downloading++
		case domain.DownloadPaused:
			s.Paused++
		case domain.DownloadCompleted:
			s.Completed++
		case domain.DownloadFailed:
			s.Failed++
		}
	}
	return s
}

// updateGauges exports the per-state counts. Callers hold q.mu.
func (q *DownloadQueue) updateGauges() {
	s := q.stats()
	metrics.SetQueued(string(domain.DownloadQueued), s.Queued)
	metrics.SetQueued(string(domain.DownloadDownloading), s.Downloading)
	metrics.SetQueued(string(domain.DownloadPaused), s.Paused)
	metrics.SetQueued(string(domain.DownloadFailed), s.Failed)
}

// NextQueued claims the Queued task with the lowest priority value.
func (q *DownloadQueue) NextQueued(_ context.Context) (domain.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		next  domain.DownloadTask
		found bool
	)
	for id, t := range q.tasks {
		if q.status[id].State != domain.DownloadQueued {
			continue
		}
		if !found || taskLess(t, next) {
			next, found = t, true
		}
	}
	if !found {
		return domain.DownloadTask{}, false
	}
	q.apply(q.status[next.ChapterID], domain.DownloadDownloading)
	return next, true
}

// hasPending reports whether any task is Queued or Downloading.
func (q *DownloadQueue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, st := range q.status {
		if st.State == domain.DownloadQueued || st.State == domain.DownloadDownloading {
			return true
		}
	}
	return false
}

// AddCacheEntry records a fetched chapter.
func (q *DownloadQueue) AddCacheEntry(ctx context.Context, entry domain.DownloadCacheEntry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = q.now()
	}
	if err := q.store.SaveCacheEntry(ctx, entry); err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry returns nil and no error if the chapter is not cached.
func (q *DownloadQueue) GetCacheEntry(ctx context.Context, chapterID int64) (*domain.DownloadCacheEntry, error) {
	return q.store.GetCacheEntry(ctx, chapterID)
}

// RemoveCacheEntry deletes a cache entry.
func (q *DownloadQueue) RemoveCacheEntry(ctx context.Context, chapterID int64) error {
	if err := q.store.DeleteCacheEntry(ctx, chapterID); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// InvalidateCacheEntry marks a cache entry for cleanup.
func (q *DownloadQueue) InvalidateCacheEntry(ctx context.Context, chapterID int64) error {
	if err := q.store.InvalidateCacheEntry(ctx, chapterID); err != nil {
		return fmt.Errorf("invalidate cache entry %d: %w", chapterID, err)
	}
	return nil
}

// CleanupCache removes invalid cache entries and their files.
func (q *DownloadQueue) CleanupCache(ctx context.Context) (int, error) {
	entries, err := q.store.ListCacheEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	for _, e := range entries {
		if e.Valid || e.Path == "" {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("downloads: removing %s: %v", e.Path, err)
		}
	}

	n, err := q.store.DeleteInvalidCacheEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete invalid cache entries: %w", err)
	}
	return n, nil
}

// GetDownloadQueueConfig returns the concurrency and retry policy.
func (q *DownloadQueue) GetDownloadQueueConfig() domain.DownloadQueueConfig {
	return q.config.GetDownloadQueueConfig()
}

// SaveDownloadQueueConfig persists the concurrency and retry policy.
func (q *DownloadQueue) SaveDownloadQueueConfig(cfg domain.DownloadQueueConfig) error {
	return q.config.SaveDownloadQueueConfig(cfg)
}

// memoryQueueConfig keeps the policy in memory.
type memoryQueueConfig struct {
	mu  sync.Mutex
	cfg domain.DownloadQueueConfig
}

func (m *memoryQueueConfig) GetDownloadQueueConfig() domain.DownloadQueueConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *memoryQueueConfig) SaveDownloadQueueConfig(cfg domain.DownloadQueueConfig) error {
	if cfg.MaxConcurrent < 1 {
		return domain.ValidationError("max concurrent downloads must be at least 1", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}
