package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
)

// Ensure DownloadStore implements the interface.
var _ driven.DownloadStore = (*DownloadStore)(nil)

// DownloadStore is an in-memory implementation of driven.DownloadStore.
type DownloadStore struct {
	mu       sync.RWMutex
	tasks    map[int64]domain.DownloadTask
	chapters map[int64]domain.DownloadTask
	cache    map[int64]domain.DownloadCacheEntry
}

// NewDownloadStore creates a new in-memory download store.
func NewDownloadStore() *DownloadStore {
	return &DownloadStore{
		tasks:    make(map[int64]domain.DownloadTask),
		chapters: make(map[int64]domain.DownloadTask),
		cache:    make(map[int64]domain.DownloadCacheEntry),
	}
}

// SaveTasks stores queue state and, when present, chapter fetch fields.
func (s *DownloadStore) SaveTasks(_ context.Context, tasks ...domain.DownloadTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		s.tasks[t.ChapterID] = domain.DownloadTask{ChapterID: t.ChapterID, BookID: t.BookID, Priority: t.Priority}
		if t.ChapterKey != "" {
			s.chapters[t.ChapterID] = t
		}
	}
	return nil
}

// DeleteTasks removes tasks. Chapter records are kept.
func (s *DownloadStore) DeleteTasks(_ context.Context, chapterIDs ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chapterIDs {
		delete(s.tasks, id)
	}
	return nil
}

// ListTasks returns tasks ordered by priority, then chapter id.
func (s *DownloadStore) ListTasks(_ context.Context) ([]domain.DownloadTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DownloadTask, 0, len(s.tasks))
	for id, t := range s.tasks {
		if c, ok := s.chapters[id]; ok {
			t.SourceID = c.SourceID
			t.ChapterKey = c.ChapterKey
			t.ChapterTitle = c.ChapterTitle
			t.BookTitle = c.BookTitle
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].ChapterID < result[j].ChapterID
	})
	return result, nil
}

// SaveCacheEntry inserts or replaces a cache entry.
func (s *DownloadStore) SaveCacheEntry(_ context.Context, entry domain.DownloadCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	s.cache[entry.ChapterID] = entry
	return nil
}

// GetCacheEntry returns nil and no error if the entry does not exist.
func (s *DownloadStore) GetCacheEntry(_ context.Context, chapterID int64) (*domain.DownloadCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[chapterID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// DeleteCacheEntry removes an entry.
func (s *DownloadStore) DeleteCacheEntry(_ context.Context, chapterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, chapterID)
	return nil
}

// InvalidateCacheEntry clears the validity flag.
func (s *DownloadStore) InvalidateCacheEntry(_ context.Context, chapterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[chapterID]
	if !ok {
		return fmt.Errorf("cache entry %d: %w", chapterID, domain.ErrNotFound)
	}
	entry.Valid = false
	s.cache[chapterID] = entry
	return nil
}

// DeleteInvalidCacheEntries removes every invalid entry.
func (s *DownloadStore) DeleteInvalidCacheEntries(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, entry := range s.cache {
		if !entry.Valid {
			delete(s.cache, id)
			n++
		}
	}
	return n, nil
}

// ListCacheEntries returns all entries ordered by chapter id.
func (s *DownloadStore) ListCacheEntries(_ context.Context) ([]domain.DownloadCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DownloadCacheEntry, 0, len(s.cache))
	for _, entry := range s.cache {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChapterID < result[j].ChapterID })
	return result, nil
}
