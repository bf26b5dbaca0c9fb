package services

import (
	"context"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/metrics"
)

// Ensure BrowseService implements the interface.
var _ driving.BrowseService = (*BrowseService)(nil)

// BrowseService forwards listing and content calls to a loaded source.
type BrowseService struct {
	sources SourceResolver
}

// NewBrowseService creates a browse service resolving sources by id.
func NewBrowseService(sources SourceResolver) *BrowseService {
	return &BrowseService{sources: sources}
}

// Listing fetches one page of a popular, latest or search listing.
func (b *BrowseService) Listing(
	ctx context.Context, sourceID int64, req domain.ListingRequest,
) <-chan domain.Result[domain.ListingPage] {
	return stream(ctx, b.sources, sourceID, "listing", func(ctx context.Context, src driven.Source) (domain.ListingPage, error) {
		return driven.FetchListing(ctx, src, req)
	})
}

// Detail fetches a book's detail page.
func (b *BrowseService) Detail(
	ctx context.Context, sourceID int64, book domain.BookSummary,
) <-chan domain.Result[domain.BookDetail] {
	return stream(ctx, b.sources, sourceID, "detail", func(ctx context.Context, src driven.Source) (domain.BookDetail, error) {
		return src.FetchDetail(ctx, book)
	})
}

// Chapters fetches a book's chapter list.
func (b *BrowseService) Chapters(
	ctx context.Context, sourceID int64, book domain.BookSummary,
) <-chan domain.Result[[]domain.ChapterSummary] {
	return stream(ctx, b.sources, sourceID, "chapters", func(ctx context.Context, src driven.Source) ([]domain.ChapterSummary, error) {
		return src.FetchChapterList(ctx, book)
	})
}

// Content fetches a chapter's text.
func (b *BrowseService) Content(
	ctx context.Context, sourceID int64, chapter domain.ChapterSummary,
) <-chan domain.Result[domain.ContentPage] {
	return stream(ctx, b.sources, sourceID, "content", func(ctx context.Context, src driven.Source) (domain.ContentPage, error) {
		return src.FetchChapterContent(ctx, chapter)
	})
}

// stream yields Loading, then the outcome of fetch, then closes.
func stream[T any](
	ctx context.Context,
	sources SourceResolver,
	sourceID int64,
	op string,
	fetch func(context.Context, driven.Source) (T, error),
) <-chan domain.Result[T] {
	out := make(chan domain.Result[T], 2)
	out <- domain.Loading[T]()

	go func() {
		defer close(out)

		src, err := sources.Source(sourceID)
		if err != nil {
			out <- domain.Failed[T](err)
			return
		}

		start := time.Now()
		v, err := fetch(ctx, src)
		metrics.ObserveFetch(op, time.Since(start), err)
		if err != nil {
			logger.Debug("browse: %s on %s failed: %v", op, src.Descriptor().Name, err)
			out <- domain.Failed[T](err)
			return
		}
		out <- domain.Success(v)
	}()
	return out
}
