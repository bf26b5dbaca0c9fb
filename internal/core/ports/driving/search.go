package driving

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// SearchAggregator fans one query out to every search-capable source.
type SearchAggregator interface {
	// Search cancels any query in flight and starts query. The channel
	// yields a snapshot after every fold and closes once all sources
	// completed or ctx is cancelled.
	Search(ctx context.Context, query string) <-chan domain.SearchSnapshot

	// Snapshot returns the current buckets.
	Snapshot() domain.SearchSnapshot

	// Cancel stops the query in flight.
	Cancel()
}
