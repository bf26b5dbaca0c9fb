package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/metrics"
)

var (
	downloadFrom        int
	downloadTo          int
	downloadFollow      bool
	downloadMetricsAddr string
	downloadWatch       bool

	queueMaxConcurrent int
	queueMaxRetries    int
	queueRetryDelay    time.Duration
	queueAutoRetry     bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Manage the chapter download queue",
	Long: `Queue chapters, reorder and remove them, and run the downloader.

Queued chapters survive restarts. Progress is tracked while
'tomes download run' is working.`,
}

var downloadAddCmd = &cobra.Command{
	Use:   "add [source-id] [book-key]",
	Short: "Queue a book's chapters",
	Args:  cobra.ExactArgs(2),
	RunE:  runDownloadAdd,
}

var downloadListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the queue in priority order",
	RunE:  runDownloadList,
}

var downloadRemoveCmd = &cobra.Command{
	Use:   "remove [chapter-id...]",
	Short: "Remove chapters from the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownloadRemove,
}

var downloadReorderCmd = &cobra.Command{
	Use:   "reorder [chapter-id...]",
	Short: "Set priorities to the order given",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownloadReorder,
}

var downloadRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Download queued chapters",
	Long: `Downloads queued chapters with a pool of workers.

By default the command returns once the queue is empty. With --follow it
keeps waiting for new work until interrupted. Interrupting pauses the
chapters in progress.`,
	RunE: runDownloadRun,
}

var downloadStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts",
	RunE:  runDownloadStats,
}

var downloadConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the concurrency and retry policy",
	RunE:  runDownloadConfig,
}

var downloadCacheCleanCmd = &cobra.Command{
	Use:   "cache-clean",
	Short: "Delete invalidated cached chapters",
	RunE:  runDownloadCacheClean,
}

func init() {
	downloadAddCmd.Flags().IntVar(&downloadFrom, "from", 1, "first chapter to queue (1-based)")
	downloadAddCmd.Flags().IntVar(&downloadTo, "to", 0, "last chapter to queue (0 for all)")

	downloadRunCmd.Flags().BoolVarP(&downloadFollow, "follow", "f", false, "keep running until interrupted")
	downloadRunCmd.Flags().StringVar(&downloadMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	downloadRunCmd.Flags().BoolVar(&downloadWatch, "watch", false, "reload packages changed on disk")

	defaults := domain.DefaultDownloadQueueConfig()
	downloadConfigCmd.Flags().IntVar(&queueMaxConcurrent, "max-concurrent", defaults.MaxConcurrent, "parallel downloads")
	downloadConfigCmd.Flags().IntVar(&queueMaxRetries, "max-retries", defaults.MaxRetries, "automatic retries per chapter")
	downloadConfigCmd.Flags().DurationVar(&queueRetryDelay, "retry-delay", defaults.RetryDelay, "wait before an automatic retry")
	downloadConfigCmd.Flags().BoolVar(&queueAutoRetry, "auto-retry", defaults.AutoRetry, "retry failed chapters automatically")

	downloadCmd.AddCommand(downloadAddCmd)
	downloadCmd.AddCommand(downloadListCmd)
	downloadCmd.AddCommand(downloadRemoveCmd)
	downloadCmd.AddCommand(downloadReorderCmd)
	downloadCmd.AddCommand(downloadRunCmd)
	downloadCmd.AddCommand(downloadStatsCmd)
	downloadCmd.AddCommand(downloadConfigCmd)
	downloadCmd.AddCommand(downloadCacheCleanCmd)
	rootCmd.AddCommand(downloadCmd)
}

func parseChapterIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chapter id %q: %w", a, domain.ErrInvalidInput)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runDownloadAdd(cmd *cobra.Command, args []string) error {
	if downloadQueue == nil || browseService == nil {
		return errors.New("download queue not configured")
	}
	ctx := cmd.Context()
	sourceID, err := parseSourceID(args[0])
	if err != nil {
		return err
	}
	bookKey := args[1]

	book, err := await(ctx, browseService.Detail(ctx, sourceID, domain.BookSummary{Key: bookKey}))
	if err != nil {
		return fmt.Errorf("detail failed: %w", err)
	}
	chapters, err := await(ctx, browseService.Chapters(ctx, sourceID, domain.BookSummary{Key: bookKey, Title: book.Title}))
	if err != nil {
		return fmt.Errorf("chapter list failed: %w", err)
	}

	from, to := max(downloadFrom, 1), downloadTo
	if to <= 0 || to > len(chapters) {
		to = len(chapters)
	}
	if from > to {
		return fmt.Errorf("chapter range %d-%d is empty: %w", from, to, domain.ErrInvalidInput)
	}

	queued := make(map[int64]bool)
	next := 0
	for _, item := range downloadQueue.GetDownloadQueue() {
		queued[item.Task.ChapterID] = true
		next = max(next, item.Task.Priority+1)
	}

	bookID := domain.BookID(sourceID, bookKey)
	var tasks []domain.DownloadTask
	for _, c := range chapters[from-1 : to] {
		id := domain.ChapterID(sourceID, c.Key)
		if queued[id] {
			continue
		}
		queued[id] = true
		tasks = append(tasks, domain.DownloadTask{
			ChapterID:    id,
			BookID:       bookID,
			Priority:     next,
			SourceID:     sourceID,
			ChapterKey:   c.Key,
			ChapterTitle: c.Title,
			BookTitle:    book.Title,
		})
		next++
	}
	if len(tasks) == 0 {
		cmd.Println("All chapters are already queued.")
		return nil
	}

	if err := downloadQueue.AddToQueue(ctx, tasks...); err != nil {
		return fmt.Errorf("failed to queue chapters: %w", err)
	}
	cmd.Printf("Queued %d chapters of %s.\n", len(tasks), book.Title)
	return nil
}

func runDownloadList(cmd *cobra.Command, _ []string) error {
	if downloadQueue == nil {
		return errors.New("download queue not configured")
	}

	items := downloadQueue.GetDownloadQueue()
	if len(items) == 0 {
		cmd.Println("Queue is empty.")
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		state := string(item.Status.State)
		if item.Status.ErrorMessage != "" {
			state += ": " + truncate(item.Status.ErrorMessage, 30)
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Task.Priority),
			strconv.FormatInt(item.Task.ChapterID, 10),
			truncate(item.Task.BookTitle, 30),
			truncate(item.Task.ChapterTitle, 40),
			state,
			fmt.Sprintf("%.0f%%", item.Status.Progress*100),
		})
	}
	cmd.Println(renderTable(cmd.OutOrStdout(),
		[]string{"Priority", "Chapter ID", "Book", "Chapter", "State", "Progress"}, rows))
	return nil
}

func runDownloadRemove(cmd *cobra.Command, args []string) error {
	if downloadQueue == nil {
		return errors.New("download queue not configured")
	}
	ids, err := parseChapterIDs(args)
	if err != nil {
		return err
	}

	if err := downloadQueue.RemoveFromQueue(cmd.Context(), ids...); err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}
	cmd.Printf("Removed %d chapters.\n", len(ids))
	return nil
}

func runDownloadReorder(cmd *cobra.Command, args []string) error {
	if downloadQueue == nil {
		return errors.New("download queue not configured")
	}
	ids, err := parseChapterIDs(args)
	if err != nil {
		return err
	}

	if err := downloadQueue.ReorderQueue(cmd.Context(), ids); err != nil {
		return fmt.Errorf("failed to reorder: %w", err)
	}
	cmd.Printf("Reordered %d chapters.\n", len(ids))
	return nil
}

func runDownloadRun(cmd *cobra.Command, _ []string) error {
	if downloadQueue == nil || downloader == nil {
		return errors.New("downloader not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if downloadMetricsAddr != "" {
		shutdownMetrics := serveMetrics(downloadMetricsAddr)
		defer shutdownMetrics()
	}

	if scheduler != nil {
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler stop error: %v", err)
			}
		}()
	}

	if downloadWatch && catalogManager != nil {
		go func() {
			if err := catalogManager.Watch(ctx); err != nil {
				logger.Warn("package watcher stopped: %v", err)
			}
		}()
	}

	start := time.Now()
	var err error
	if downloadFollow {
		err = downloader.Run(ctx)
	} else {
		err = downloader.Drain(ctx)
	}
	logger.Timing("download run", start)

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("downloader stopped: %w", err)
	}
	if err != nil {
		n := downloadQueue.PauseAllDownloads()
		cmd.Printf("Interrupted; paused %d chapters.\n", n)
	}
	return printStats(cmd, downloadQueue.GetDownloadStats())
}

// serveMetrics serves /metrics on addr until the returned func is called.
func serveMetrics(addr string) func() {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func runDownloadStats(cmd *cobra.Command, _ []string) error {
	if downloadQueue == nil {
		return errors.New("download queue not configured")
	}
	return printStats(cmd, downloadQueue.GetDownloadStats())
}

func printStats(cmd *cobra.Command, s domain.DownloadStats) error {
	cmd.Println("Download Queue")
	cmd.Println("==============")
	cmd.Printf("  Queued:      %d\n", s.Queued)
	cmd.Printf("  Downloading: %d\n", s.Downloading)
	cmd.Printf("  Paused:      %d\n", s.Paused)
	cmd.Printf("  Completed:   %d\n", s.Completed)
	cmd.Printf("  Failed:      %d\n", s.Failed)
	if s.TotalBytes > 0 {
		cmd.Printf("  Downloaded:  %d bytes (%.0f B/s)\n", s.TotalBytes, s.AverageSpeed())
	}
	return nil
}

func runDownloadConfig(cmd *cobra.Command, _ []string) error {
	if downloadQueue == nil {
		return errors.New("download queue not configured")
	}

	cfg := downloadQueue.GetDownloadQueueConfig()
	flags := cmd.Flags()
	changed := false
	if flags.Changed("max-concurrent") {
		cfg.MaxConcurrent, changed = queueMaxConcurrent, true
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries, changed = queueMaxRetries, true
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay, changed = queueRetryDelay, true
	}
	if flags.Changed("auto-retry") {
		cfg.AutoRetry, changed = queueAutoRetry, true
	}
	if changed {
		if err := downloadQueue.SaveDownloadQueueConfig(cfg); err != nil {
			return fmt.Errorf("failed to save queue config: %w", err)
		}
		cmd.Println("Queue configuration saved.")
	}

	cmd.Printf("  Max concurrent: %d\n", cfg.MaxConcurrent)
	cmd.Printf("  Max retries:    %d\n", cfg.MaxRetries)
	cmd.Printf("  Retry delay:    %s\n", cfg.RetryDelay)
	cmd.Printf("  Auto retry:     %t\n", cfg.AutoRetry)
	return nil
}

func runDownloadCacheClean(cmd *cobra.Command, _ []string) error {
	if downloadQueue == nil {
		return errors.New("download queue not configured")
	}

	n, err := downloadQueue.CleanupCache(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}
	cmd.Printf("Removed %d cache entries.\n", n)
	return nil
}
