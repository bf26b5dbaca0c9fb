package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/metrics"
)

// Ensure SearchAggregator implements the interface.
var _ driving.SearchAggregator = (*SearchAggregator)(nil)

// SourceLister returns the loaded sources. CatalogManager implements it.
type SourceLister interface {
	Sources() []driven.Source
}

// SearchAggregator fans a query out to every search-capable source and
// folds the outcomes into three disjoint buckets.
type SearchAggregator struct {
	sources SourceLister

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	snap   domain.SearchSnapshot
}

// NewSearchAggregator creates an aggregator over the given sources.
func NewSearchAggregator(sources SourceLister) *SearchAggregator {
	return &SearchAggregator{sources: sources}
}

// Search cancels any query in flight and dispatches query to every
// search-capable source. The returned channel yields the initial snapshot
// and one more per fold, then closes.
func (a *SearchAggregator) Search(ctx context.Context, query string) <-chan domain.SearchSnapshot {
	var targets []driven.Source
	for _, src := range a.sources.Sources() {
		if src.Descriptor().Capabilities.Search {
			targets = append(targets, src)
		}
	}

	qctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.gen++
	gen := a.gen
	a.cancel = cancel
	a.snap = domain.SearchSnapshot{Query: query}
	for _, src := range targets {
		a.snap.InProgress = append(a.snap.InProgress, domain.SearchItem{Source: src.Descriptor()})
	}
	first := a.copySnapshot()
	a.mu.Unlock()

	logger.Debug("search: %q dispatched to %d sources", query, len(targets))

	// Every fetch sends at most once, so sends never block.
	out := make(chan domain.SearchSnapshot, len(targets)+1)
	out <- first

	var wg sync.WaitGroup
	for _, src := range targets {
		wg.Add(1)
		go func(src driven.Source) {
			defer wg.Done()
			books, err := fetchSearch(qctx, src, query)
			if snap, ok := a.fold(qctx, gen, src.Descriptor(), books, err); ok {
				out <- snap
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
		if qctx.Err() != nil {
			metrics.IncSearch(metrics.OutcomeCanceled)
			return
		}
		metrics.IncSearch(metrics.OutcomeSuccess)
		cancel()
	}()
	return out
}

// fetchSearch runs one source's search and turns a panic into an error.
func fetchSearch(ctx context.Context, src driven.Source, query string) (books []domain.BookSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v", r)
		}
	}()
	page, err := src.FetchSearch(ctx, query, 1, nil)
	if err != nil {
		return nil, err
	}
	return page.Books, nil
}

// fold moves one source out of InProgress. Outcomes of a superseded or
// cancelled query are dropped.
func (a *SearchAggregator) fold(
	ctx context.Context, gen uint64, desc domain.SourceDescriptor, books []domain.BookSummary, err error,
) (domain.SearchSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || ctx.Err() != nil {
		return domain.SearchSnapshot{}, false
	}

	idx := -1
	for i, item := range a.snap.InProgress {
		if item.Source.ID == desc.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.SearchSnapshot{}, false
	}
	a.snap.InProgress = append(a.snap.InProgress[:idx], a.snap.InProgress[idx+1:]...)

	item := domain.SearchItem{Source: desc, Results: books}
	switch {
	case err != nil:
		logger.Debug("search: %s failed: %v", desc.Name, err)
		item.Results = nil
		item.Err = domain.FailureMessage(err)
		a.snap.NoResult = append(a.snap.NoResult, item)
	case len(books) == 0:
		a.snap.NoResult = append(a.snap.NoResult, item)
	default:
		a.snap.WithResult = append(a.snap.WithResult, item)
	}
	return a.copySnapshot(), true
}

// Snapshot returns the current buckets.
func (a *SearchAggregator) Snapshot() domain.SearchSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copySnapshot()
}

// Cancel stops the query in flight. Sources that had not answered are
// dropped from InProgress.
func (a *SearchAggregator) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.gen++
	a.snap.InProgress = nil
}

// copySnapshot returns a copy sharing no slices with a.snap. Callers hold a.mu.
func (a *SearchAggregator) copySnapshot() domain.SearchSnapshot {
	return domain.SearchSnapshot{
		Query:      a.snap.Query,
		InProgress: append([]domain.SearchItem(nil), a.snap.InProgress...),
		NoResult:   append([]domain.SearchItem(nil), a.snap.NoResult...),
		WithResult: append([]domain.SearchItem(nil), a.snap.WithResult...),
	}
}
