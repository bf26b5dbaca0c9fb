package driven

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// Source is the contract every content provider implements.
// All fetch operations are network-bound and fail with a domain.Failure
// of kind ErrNetwork or ErrParse.
type Source interface {
	// Descriptor returns the provider identity and capabilities.
	Descriptor() domain.SourceDescriptor

	// Filters returns the ordered filter definitions used by FetchSearch.
	// Returns nil when the source is not filterable.
	Filters() []domain.Filter

	// FetchPopular returns a page of the popular listing. Pages start at 1.
	FetchPopular(ctx context.Context, page int) (domain.ListingPage, error)

	// FetchLatest returns a page of the latest-updates listing.
	FetchLatest(ctx context.Context, page int) (domain.ListingPage, error)

	// FetchSearch returns a page of search results for query and filters.
	FetchSearch(ctx context.Context, query string, page int, filters []domain.Filter) (domain.ListingPage, error)

	// FetchDetail returns the full description of a book.
	FetchDetail(ctx context.Context, book domain.BookSummary) (domain.BookDetail, error)

	// FetchChapterList returns the book's chapters in reading order.
	FetchChapterList(ctx context.Context, book domain.BookSummary) ([]domain.ChapterSummary, error)

	// FetchChapterContent returns the body of one chapter.
	FetchChapterContent(ctx context.Context, chapter domain.ChapterSummary) (domain.ContentPage, error)
}

// FetchListing dispatches a ListingRequest to the matching Source operation.
func FetchListing(ctx context.Context, src Source, req domain.ListingRequest) (domain.ListingPage, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	switch req.Kind {
	case domain.ListingPopular:
		return src.FetchPopular(ctx, page)
	case domain.ListingLatest:
		return src.FetchLatest(ctx, page)
	case domain.ListingSearch:
		return src.FetchSearch(ctx, req.Query, page, req.Filters)
	default:
		return domain.ListingPage{}, domain.ErrUnsupportedType
	}
}
