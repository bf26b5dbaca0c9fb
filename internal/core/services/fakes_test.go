package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
)

// fakeSource is a driven.Source with scripted answers.
type fakeSource struct {
	desc  domain.SourceDescriptor
	delay time.Duration

	results    []domain.BookSummary
	searchErr  error
	blocks     []string
	contentErr error

	mu       sync.Mutex
	queries  []string
	chapters []string
}

var _ driven.Source = (*fakeSource)(nil)

func newFakeSource(name string, caps domain.Capabilities) *fakeSource {
	return &fakeSource{desc: domain.NewSourceDescriptor(name, "en", "https://"+strings.ToLower(name)+".example", 1, caps)}
}

func (f *fakeSource) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) Descriptor() domain.SourceDescriptor { return f.desc }

func (f *fakeSource) Filters() []domain.Filter { return nil }

func (f *fakeSource) FetchPopular(ctx context.Context, page int) (domain.ListingPage, error) {
	if err := f.wait(ctx); err != nil {
		return domain.ListingPage{}, domain.NetworkError("popular", err)
	}
	return domain.ListingPage{Books: f.results, HasNextPage: page < 2}, nil
}

func (f *fakeSource) FetchLatest(_ context.Context, _ int) (domain.ListingPage, error) {
	return domain.ListingPage{}, domain.ErrUnsupportedType
}

func (f *fakeSource) FetchSearch(ctx context.Context, query string, _ int, _ []domain.Filter) (domain.ListingPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return domain.ListingPage{}, domain.NetworkError("search", err)
	}
	if f.searchErr != nil {
		return domain.ListingPage{}, f.searchErr
	}
	books := make([]domain.BookSummary, len(f.results))
	for i, b := range f.results {
		b.Title = query + ":" + b.Title
		books[i] = b
	}
	return domain.ListingPage{Books: books}, nil
}

func (f *fakeSource) FetchDetail(_ context.Context, book domain.BookSummary) (domain.BookDetail, error) {
	return domain.BookDetail{Key: book.Key, Title: strings.ToUpper(book.Title), Status: domain.StatusOngoing}, nil
}

func (f *fakeSource) FetchChapterList(_ context.Context, book domain.BookSummary) ([]domain.ChapterSummary, error) {
	return []domain.ChapterSummary{
		{Key: book.Key + "/1", Title: "Chapter 1"},
		{Key: book.Key + "/2", Title: "Chapter 2"},
	}, nil
}

func (f *fakeSource) FetchChapterContent(ctx context.Context, chapter domain.ChapterSummary) (domain.ContentPage, error) {
	f.mu.Lock()
	f.chapters = append(f.chapters, chapter.Key)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return domain.ContentPage{}, domain.NetworkError("content", err)
	}
	if f.contentErr != nil {
		return domain.ContentPage{}, f.contentErr
	}
	return domain.ContentPage{Blocks: f.blocks}, nil
}

func (f *fakeSource) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chapters...)
}

// fakeRegistry serves artifacts from memory.
type fakeRegistry struct {
	records   []domain.RegistryRecord
	artifacts map[string]string
	indexErr  error

	// gate, when set, blocks FetchArtifact until closed.
	gate chan struct{}
}

func (r *fakeRegistry) FetchIndex(_ context.Context) ([]domain.RegistryRecord, error) {
	return r.records, r.indexErr
}

func (r *fakeRegistry) FetchArtifact(ctx context.Context, rawURL string) ([]byte, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	body, ok := r.artifacts[rawURL]
	if !ok {
		return nil, domain.NetworkError("GET "+rawURL+": status 404", nil)
	}
	return []byte(body), nil
}

// fakeLoader stages "<name>:<version>" into <pkg>.fake. Content starting
// with "bad" fails validation.
type fakeLoader struct {
	mu       sync.Mutex
	loaded   map[string]bool
	released []string
}

var _ driven.PackageLoader = (*fakeLoader)(nil)

func newFakeLoader() *fakeLoader { return &fakeLoader{loaded: make(map[string]bool)} }

func fakePath(dir, pkg string) string { return filepath.Join(dir, pkg+".fake") }

func (l *fakeLoader) Kind() domain.PackageKind { return domain.PackageScript }

func (l *fakeLoader) Stage(dir string, rec domain.RegistryRecord, artifact []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(fakePath(dir, rec.PkgName), artifact, 0o644)
}

func (l *fakeLoader) parse(dir, pkg string) (*fakeSource, error) {
	data, err := os.ReadFile(fakePath(dir, pkg))
	if errors.Is(err, os.ErrNotExist) {
		return nil, driven.ErrNoPackage
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "bad") {
		return nil, domain.ValidationError("package "+pkg+" is bad", nil)
	}
	name, version := text, 1
	if i := strings.LastIndex(text, ":"); i > 0 {
		name = text[:i]
		if v, err := strconv.Atoi(text[i+1:]); err == nil {
			version = v
		}
	}
	src := newFakeSource(name, domain.Capabilities{Popular: true, Search: true})
	src.desc = domain.NewSourceDescriptor(name, "en", src.desc.BaseURL, version, src.desc.Capabilities)
	return src, nil
}

func (l *fakeLoader) Validate(_ context.Context, dir, pkg string) error {
	_, err := l.parse(dir, pkg)
	if errors.Is(err, driven.ErrNoPackage) {
		return domain.ValidationError(fmt.Sprintf("package %s has no artifact", pkg), err)
	}
	return err
}

func (l *fakeLoader) Load(_ context.Context, dir, pkg string) (driven.Source, error) {
	src, err := l.parse(dir, pkg)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.loaded[pkg] = true
	l.mu.Unlock()
	return src, nil
}

func (l *fakeLoader) Release(pkg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.loaded, pkg)
	l.released = append(l.released, pkg)
}

func (l *fakeLoader) isLoaded(pkg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[pkg]
}

// nopClient fails every request.
type nopClient struct{}

func (nopClient) Do(_ context.Context, req *driven.HTTPRequest) (*driven.HTTPResponse, error) {
	return nil, domain.NetworkError(req.Method+" "+req.URL+": offline", nil)
}
