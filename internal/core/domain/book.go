package domain

import (
	"strings"
	"time"
)

// BookStatus is the publication status of a book.
// Values match those persisted by existing libraries.
type BookStatus int

// Publication statuses.
const (
	StatusUnknown            BookStatus = 0
	StatusOngoing            BookStatus = 1
	StatusCompleted          BookStatus = 2
	StatusLicensed           BookStatus = 3
	StatusPublishingFinished BookStatus = 4
	StatusCancelled          BookStatus = 5
	StatusOnHiatus           BookStatus = 6
)

// String returns the display name of the status.
func (s BookStatus) String() string {
	switch s {
	case StatusOngoing:
		return "Ongoing"
	case StatusCompleted:
		return "Completed"
	case StatusLicensed:
		return "Licensed"
	case StatusPublishingFinished:
		return "Publishing finished"
	case StatusCancelled:
		return "Cancelled"
	case StatusOnHiatus:
		return "On hiatus"
	default:
		return "Unknown"
	}
}

// ParseBookStatus maps free text such as "ongoing" or "Completed" to a
// status. Unrecognised text yields StatusUnknown.
func ParseBookStatus(text string) BookStatus {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return StatusUnknown
	case strings.Contains(t, "ongoing"), strings.Contains(t, "updating"), strings.Contains(t, "active"):
		return StatusOngoing
	case strings.Contains(t, "complete"), strings.Contains(t, "finished"):
		return StatusCompleted
	case strings.Contains(t, "licensed"):
		return StatusLicensed
	case strings.Contains(t, "cancel"), strings.Contains(t, "dropped"):
		return StatusCancelled
	case strings.Contains(t, "hiatus"), strings.Contains(t, "paused"):
		return StatusOnHiatus
	default:
		return StatusUnknown
	}
}

// BookSummary is one entry of a listing page.
type BookSummary struct {
	// Key is the source-relative key or URL of the book.
	Key string

	Title  string
	Cover  string
	Author string
}

// BookDetail is the full description of a book.
type BookDetail struct {
	Key         string
	Title       string
	Cover       string
	Author      string
	Description string
	Genres      []string
	Status      BookStatus
}

// Summary returns the listing form of the detail.
func (b BookDetail) Summary() BookSummary {
	return BookSummary{Key: b.Key, Title: b.Title, Cover: b.Cover, Author: b.Author}
}

// ChapterSummary is one entry of a book's chapter list.
type ChapterSummary struct {
	// Key is the source-relative key or URL of the chapter.
	Key   string
	Title string

	// UploadedAt is nil when the source does not expose a date.
	UploadedAt *time.Time

	// Number is the chapter ordinal, nil when unknown.
	Number *float64
}

// ContentPage is the body of one chapter as ordered text blocks.
type ContentPage struct {
	Blocks []string
}

// Text joins the blocks with blank lines.
func (c ContentPage) Text() string {
	return strings.Join(c.Blocks, "\n\n")
}

// ListingKind selects which listing a request targets.
type ListingKind string

// Listing kinds.
const (
	ListingPopular ListingKind = "popular"
	ListingLatest  ListingKind = "latest"
	ListingSearch  ListingKind = "search"
)

// ListingRequest describes a paginated listing fetch.
type ListingRequest struct {
	Kind    ListingKind
	Page    int
	Query   string
	Filters []Filter
}

// ListingPage is one page of a listing.
// HasNextPage is a heuristic derived from the next-page selector, not a
// total count.
type ListingPage struct {
	Books       []BookSummary
	HasNextPage bool
}
