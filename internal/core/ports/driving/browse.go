package driving

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// BrowseService forwards listing and content calls to one source.
// Each call streams Loading followed by Success or Failure.
type BrowseService interface {
	Listing(ctx context.Context, sourceID int64, req domain.ListingRequest) <-chan domain.Result[domain.ListingPage]
	Detail(ctx context.Context, sourceID int64, book domain.BookSummary) <-chan domain.Result[domain.BookDetail]
	Chapters(ctx context.Context, sourceID int64, book domain.BookSummary) <-chan domain.Result[[]domain.ChapterSummary]
	Content(ctx context.Context, sourceID int64, chapter domain.ChapterSummary) <-chan domain.Result[domain.ContentPage]
}
