package domain

// SearchBucket is the bucket a SearchItem belongs to.
type SearchBucket string

// Search buckets. A source is in exactly one at any instant.
const (
	BucketInProgress SearchBucket = "in_progress"
	BucketNoResult   SearchBucket = "no_result"
	BucketWithResult SearchBucket = "with_result"
)

// SearchItem is one source's outcome for the current query.
type SearchItem struct {
	Source  SourceDescriptor
	Results []BookSummary

	// Err holds the swallowed failure message, if the fetch failed.
	Err string
}

// SearchSnapshot is the state of the three buckets after one fold.
type SearchSnapshot struct {
	Query      string
	InProgress []SearchItem
	NoResult   []SearchItem
	WithResult []SearchItem
}

// Done reports whether every dispatched source has completed.
func (s SearchSnapshot) Done() bool {
	return len(s.InProgress) == 0
}

// ResultCount returns the number of books across all sources.
func (s SearchSnapshot) ResultCount() int {
	n := 0
	for _, item := range s.WithResult {
		n += len(item.Results)
	}
	return n
}
