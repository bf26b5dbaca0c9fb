package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/services"
)

// stubSource answers every call from memory.
type stubSource struct {
	desc  domain.SourceDescriptor
	books []domain.BookSummary
	fail  bool
}

func newStubSource(name string, books ...domain.BookSummary) *stubSource {
	caps := domain.Capabilities{Popular: true, Search: true}
	return &stubSource{
		desc:  domain.NewSourceDescriptor(name, "en", "https://"+strings.ToLower(name)+".example", 1, caps),
		books: books,
	}
}

func (s *stubSource) Descriptor() domain.SourceDescriptor { return s.desc }

func (s *stubSource) Filters() []domain.Filter { return nil }

func (s *stubSource) FetchPopular(_ context.Context, page int) (domain.ListingPage, error) {
	if s.fail {
		return domain.ListingPage{}, domain.NetworkError("GET /popular: status 503", nil)
	}
	return domain.ListingPage{Books: s.books, HasNextPage: page == 1}, nil
}

func (s *stubSource) FetchLatest(context.Context, int) (domain.ListingPage, error) {
	return domain.ListingPage{}, domain.ErrUnsupportedType
}

func (s *stubSource) FetchSearch(_ context.Context, query string, _ int, _ []domain.Filter) (domain.ListingPage, error) {
	if s.fail {
		return domain.ListingPage{}, domain.NetworkError("GET /search: status 503", nil)
	}
	var out []domain.BookSummary
	for _, b := range s.books {
		if strings.Contains(strings.ToLower(b.Title), strings.ToLower(query)) {
			out = append(out, b)
		}
	}
	return domain.ListingPage{Books: out}, nil
}

func (s *stubSource) FetchDetail(_ context.Context, book domain.BookSummary) (domain.BookDetail, error) {
	for _, b := range s.books {
		if b.Key == book.Key {
			return domain.BookDetail{Key: b.Key, Title: b.Title, Author: b.Author, Status: domain.StatusOngoing}, nil
		}
	}
	return domain.BookDetail{}, domain.ParseError("book "+book.Key+" not found", nil)
}

func (s *stubSource) FetchChapterList(_ context.Context, book domain.BookSummary) ([]domain.ChapterSummary, error) {
	return []domain.ChapterSummary{
		{Key: book.Key + "/1", Title: "Chapter 1"},
		{Key: book.Key + "/2", Title: "Chapter 2"},
		{Key: book.Key + "/3", Title: "Chapter 3"},
	}, nil
}

func (s *stubSource) FetchChapterContent(_ context.Context, chapter domain.ChapterSummary) (domain.ContentPage, error) {
	return domain.ContentPage{Blocks: []string{"Text of " + chapter.Key}}, nil
}

// testEnv holds the services installed by setupTestServices.
type testEnv struct {
	alpha    *stubSource
	broken   *stubSource
	queue    *services.DownloadQueue
	settings *services.SettingsService
	dataDir  string
}

// setupTestServices installs services over stub sources and memory stores.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		alpha: newStubSource("Alpha",
			domain.BookSummary{Key: "/dragon", Title: "Dragon Road", Author: "Ann"},
			domain.BookSummary{Key: "/sword", Title: "Sword Song", Author: "Bo"},
		),
		broken:  newStubSource("Broken"),
		dataDir: t.TempDir(),
	}
	env.broken.fail = true

	env.settings = services.NewSettingsService(memory.NewConfigStore(), env.dataDir)
	appSettings, err := env.settings.Get()
	require.NoError(t, err)

	catalog := services.NewCatalogManager(appSettings.Catalog, nil, nil, map[string]driven.Source{
		"builtin.alpha":  env.alpha,
		"builtin.broken": env.broken,
	})
	env.queue = services.NewDownloadQueue(memory.NewDownloadStore(), env.settings)

	SetServices(&Services{
		Catalog:    catalog,
		Browse:     services.NewBrowseService(catalog),
		Search:     services.NewSearchAggregator(catalog),
		Queue:      env.queue,
		Downloader: services.NewDownloader(env.queue, catalog, appSettings.Downloads.Dir),
		Settings:   env.settings,
	})
	t.Cleanup(func() { SetServices(nil) })
	return env
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	resetFlags(rootCmd)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values do not leak
// between executions of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
