package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/metrics"
)

// SourceResolver looks up a loaded source. CatalogManager implements it.
type SourceResolver interface {
	Source(id int64) (driven.Source, error)
}

// Downloader drains the download queue with a pool of workers. Each
// chapter is written to <dir>/<bookID>/<chapterID>.txt.
type Downloader struct {
	queue   *DownloadQueue
	sources SourceResolver
	dir     string

	// poll is how long an idle worker waits before looking again.
	poll time.Duration

	retries atomic.Int32
}

var _ driving.Downloader = (*Downloader)(nil)

// NewDownloader creates a downloader writing chapters under dir.
func NewDownloader(queue *DownloadQueue, sources SourceResolver, dir string) *Downloader {
	return &Downloader{
		queue:   queue,
		sources: sources,
		dir:     dir,
		poll:    250 * time.Millisecond,
	}
}

// ChapterPath returns where a chapter's text is written.
func ChapterPath(dir string, bookID, chapterID int64) string {
	return filepath.Join(dir, strconv.FormatInt(bookID, 10), strconv.FormatInt(chapterID, 10)+".txt")
}

// Run processes tasks until ctx is cancelled.
func (d *Downloader) Run(ctx context.Context) error {
	d.run(ctx, false)
	return ctx.Err()
}

// Drain processes tasks until none is queued, downloading or waiting for
// an automatic retry.
func (d *Downloader) Drain(ctx context.Context) error {
	d.run(ctx, true)
	return ctx.Err()
}

func (d *Downloader) run(ctx context.Context, drain bool) {
	cfg := d.queue.GetDownloadQueueConfig()
	workers := max(cfg.MaxConcurrent, 1)
	logger.Debug("downloads: starting %d workers", workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker, cfg, drain)
		}(i)
	}
	wg.Wait()
}

func (d *Downloader) work(ctx context.Context, worker int, cfg domain.DownloadQueueConfig, drain bool) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, ok := d.queue.NextQueued(ctx)
		if !ok {
			if drain && d.retries.Load() == 0 && !d.queue.hasPending() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.poll):
			}
			continue
		}

		logger.Debug("downloads: worker %d fetching chapter %d", worker, task.ChapterID)
		if err := d.process(ctx, task); err != nil {
			if ctx.Err() != nil {
				// Interrupted; the caller pauses what is left.
				return
			}
			d.fail(ctx, task, cfg, err)
		}
	}
}

// process fetches and writes one chapter, then completes the task.
func (d *Downloader) process(ctx context.Context, task domain.DownloadTask) error {
	start := time.Now()

	entry, err := d.queue.GetCacheEntry(ctx, task.ChapterID)
	if err != nil {
		return fmt.Errorf("read cache entry: %w", err)
	}
	if entry != nil && entry.Valid && exists(entry.Path) {
		logger.Debug("downloads: chapter %d already cached at %s", task.ChapterID, entry.Path)
		return d.queue.UpdateStatus(ctx, task.ChapterID, domain.DownloadCompleted)
	}

	src, err := d.sources.Source(task.SourceID)
	if err != nil {
		return err
	}
	page, err := src.FetchChapterContent(ctx, domain.ChapterSummary{Key: task.ChapterKey, Title: task.ChapterTitle})
	metrics.ObserveFetch("content", time.Since(start), err)
	if err != nil {
		return err
	}

	text := page.Text()
	if task.ChapterTitle != "" {
		text = task.ChapterTitle + "\n\n" + text
	}
	path := ChapterPath(d.dir, task.BookID, task.ChapterID)
	if err := writeFileAtomic(path, []byte(text+"\n")); err != nil {
		return domain.NewFailure(domain.ErrInstall, "write chapter", err)
	}

	size := int64(len(text) + 1)
	elapsed := time.Since(start)
	speed := 0.0
	if elapsed > 0 {
		speed = float64(size) / elapsed.Seconds()
	}
	if err := d.queue.UpdateProgress(task.ChapterID, 1, size, size, speed); err != nil {
		return err
	}
	if err := d.queue.AddCacheEntry(ctx, domain.DownloadCacheEntry{ChapterID: task.ChapterID, Path: path, Valid: true}); err != nil {
		return err
	}
	metrics.AddDownloadedBytes(int(size))
	return d.queue.UpdateStatus(ctx, task.ChapterID, domain.DownloadCompleted)
}

// fail marks the task Failed and schedules an automatic retry while the
// policy allows one.
func (d *Downloader) fail(ctx context.Context, task domain.DownloadTask, cfg domain.DownloadQueueConfig, cause error) {
	st, _ := d.queue.GetStatus(task.ChapterID)
	retry := cfg.AutoRetry && st.RetryCount < cfg.MaxRetries
	count := st.RetryCount
	if retry {
		count++
	}

	// Must precede MarkDownloadFailed so Drain sees the pending retry.
	if retry {
		d.retries.Add(1)
	}
	logger.Warn("downloads: chapter %d failed: %v", task.ChapterID, cause)
	if err := d.queue.MarkDownloadFailed(ctx, task.ChapterID, domain.FailureMessage(cause), count); err != nil {
		logger.Warn("downloads: marking chapter %d failed: %v", task.ChapterID, err)
		if retry {
			d.retries.Add(-1)
		}
		return
	}
	if !retry {
		return
	}

	go func() {
		defer d.retries.Add(-1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.RetryDelay):
		}
		if err := d.queue.RetryFailedDownload(ctx, task.ChapterID); err != nil {
			logger.Debug("downloads: retry of chapter %d skipped: %v", task.ChapterID, err)
		}
	}()
}

// writeFileAtomic writes data to a temporary file beside path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chapter-*")
	if err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
