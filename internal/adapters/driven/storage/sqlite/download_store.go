package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
)

// downloadStore implements driven.DownloadStore.
type downloadStore struct {
	store *Store
}

var _ driven.DownloadStore = (*downloadStore)(nil)

// SaveTasks upserts tasks and their chapter records in one transaction.
func (s *downloadStore) SaveTasks(ctx context.Context, tasks ...domain.DownloadTask) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO download_tasks (chapter_id, book_id, priority)
			VALUES (?, ?, ?)
			ON CONFLICT(chapter_id) DO UPDATE SET
				book_id = excluded.book_id,
				priority = excluded.priority
		`, t.ChapterID, t.BookID, t.Priority); err != nil {
			return fmt.Errorf("saving download task %d: %w", t.ChapterID, err)
		}

		if t.ChapterKey == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (chapter_id, book_id, source_id, chapter_key, chapter_title, book_title)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(chapter_id) DO UPDATE SET
				book_id = excluded.book_id,
				source_id = excluded.source_id,
				chapter_key = excluded.chapter_key,
				chapter_title = excluded.chapter_title,
				book_title = excluded.book_title
		`, t.ChapterID, t.BookID, t.SourceID, t.ChapterKey,
			nullString(t.ChapterTitle), nullString(t.BookTitle)); err != nil {
			return fmt.Errorf("saving chapter %d: %w", t.ChapterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing download tasks: %w", err)
	}
	return nil
}

// DeleteTasks removes tasks. Chapter records are kept.
func (s *downloadStore) DeleteTasks(ctx context.Context, chapterIDs ...int64) error {
	if len(chapterIDs) == 0 {
		return nil
	}

	args := make([]any, len(chapterIDs))
	for i, id := range chapterIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chapterIDs)), ",")

	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM download_tasks WHERE chapter_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("deleting download tasks: %w", err)
	}
	return nil
}

// ListTasks returns queued tasks in dequeue order.
func (s *downloadStore) ListTasks(ctx context.Context) ([]domain.DownloadTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT t.chapter_id, t.book_id, t.priority,
			c.source_id, c.chapter_key, c.chapter_title, c.book_title
		FROM download_tasks t
		LEFT JOIN chapters c ON c.chapter_id = t.chapter_id
		ORDER BY t.priority, t.chapter_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying download tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.DownloadTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		var t domain.DownloadTask
		var sourceID sql.NullInt64
		var key, chapterTitle, bookTitle sql.NullString
		if err := rows.Scan(&t.ChapterID, &t.BookID, &t.Priority,
			&sourceID, &key, &chapterTitle, &bookTitle); err != nil {
			return nil, fmt.Errorf("scanning download task: %w", err)
		}
		t.SourceID = sourceID.Int64
		t.ChapterKey = key.String
		t.ChapterTitle = chapterTitle.String
		t.BookTitle = bookTitle.String
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating download tasks: %w", err)
	}
	return tasks, nil
}

// SaveCacheEntry inserts or replaces a cache entry.
func (s *downloadStore) SaveCacheEntry(ctx context.Context, entry domain.DownloadCacheEntry) error {
	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO download_cache (chapter_id, path, valid, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chapter_id) DO UPDATE SET
			path = excluded.path,
			valid = excluded.valid,
			cached_at = excluded.cached_at
	`, entry.ChapterID, entry.Path, boolToInt(entry.Valid), formatNullableTime(cachedAt))
	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry returns nil and no error if the entry does not exist.
func (s *downloadStore) GetCacheEntry(ctx context.Context, chapterID int64) (*domain.DownloadCacheEntry, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT chapter_id, path, valid, cached_at FROM download_cache WHERE chapter_id = ?
	`, chapterID)

	entry, err := scanCacheEntry(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// DeleteCacheEntry removes an entry.
func (s *downloadStore) DeleteCacheEntry(ctx context.Context, chapterID int64) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM download_cache WHERE chapter_id = ?", chapterID)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// InvalidateCacheEntry clears the validity flag.
func (s *downloadStore) InvalidateCacheEntry(ctx context.Context, chapterID int64) error {
	res, err := s.store.db.ExecContext(ctx, "UPDATE download_cache SET valid = 0 WHERE chapter_id = ?", chapterID)
	if err != nil {
		return fmt.Errorf("invalidating cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("invalidating cache entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cache entry %d: %w", chapterID, domain.ErrNotFound)
	}
	return nil
}

// DeleteInvalidCacheEntries removes every invalid entry.
func (s *downloadStore) DeleteInvalidCacheEntries(ctx context.Context) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM download_cache WHERE valid = 0")
	if err != nil {
		return 0, fmt.Errorf("deleting invalid cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting invalid cache entries: %w", err)
	}
	return int(n), nil
}

// ListCacheEntries returns all entries ordered by chapter id.
func (s *downloadStore) ListCacheEntries(ctx context.Context) ([]domain.DownloadCacheEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chapter_id, path, valid, cached_at FROM download_cache ORDER BY chapter_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying cache entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.DownloadCacheEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache entries: %w", err)
	}
	return entries, nil
}

// scanCacheEntry scans a cache entry from a row or rows.
func scanCacheEntry(row rowScanner) (*domain.DownloadCacheEntry, error) {
	var entry domain.DownloadCacheEntry
	var valid int
	var cachedAt sql.NullString

	if err := row.Scan(&entry.ChapterID, &entry.Path, &valid, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cache entry: %w", err)
	}
	entry.Valid = valid == 1
	entry.CachedAt = parseNullableTime(cachedAt)
	return &entry, nil
}
