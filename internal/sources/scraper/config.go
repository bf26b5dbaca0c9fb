package scraper

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/sources/extract"
)

// Endpoint placeholders substituted by the default request builders.
const (
	PagePlaceholder  = "{page}"
	QueryPlaceholder = "{query}"
)

// ListingTable describes one paginated listing.
type ListingTable struct {
	// Endpoint is appended to the base URL after placeholder substitution.
	Endpoint string `json:"endpoint"`

	// Item selects one node per book.
	Item string `json:"selector"`

	Title extract.Selector `json:"title"`
	Link  extract.Selector `json:"link"`
	Cover extract.Selector `json:"cover"`

	// NextPage is tested for presence to derive HasNextPage.
	NextPage extract.Selector `json:"nextPage"`

	// NextPageValue, when set, must equal the resolved next-page value.
	NextPageValue string `json:"nextPageValue,omitempty"`

	AbsoluteLinks  bool `json:"absoluteLinks,omitempty"`
	AbsoluteCovers bool `json:"absoluteCovers,omitempty"`

	// MaxPage overrides the next-page heuristic when positive.
	MaxPage int `json:"maxPage,omitempty"`

	// InfinitePage always reports a next page.
	InfinitePage bool `json:"infinitePage,omitempty"`
}

// DetailTable describes the book detail page.
type DetailTable struct {
	// Container must match for the page to be a detail page.
	Container string `json:"container"`

	Title       extract.Selector `json:"title"`
	Cover       extract.Selector `json:"cover"`
	Author      extract.Selector `json:"author"`
	Description extract.Selector `json:"description"`
	Genres      extract.Selector `json:"genres"`
	Status      extract.Selector `json:"status"`

	// StatusMap maps lower-cased status text to a status. Text missing
	// from the map falls back to domain.ParseBookStatus.
	StatusMap map[string]domain.BookStatus `json:"statusMap,omitempty"`

	AbsoluteCovers bool `json:"absoluteCovers,omitempty"`
}

// ChapterTable describes the chapter list.
type ChapterTable struct {
	// Item selects one node per chapter.
	Item string `json:"selector"`

	Title  extract.Selector `json:"title"`
	Link   extract.Selector `json:"link"`
	Date   extract.Selector `json:"date"`
	Number extract.Selector `json:"number"`

	// DateLayout is a time.Parse layout for Date.
	DateLayout string `json:"dateLayout,omitempty"`

	AbsoluteLinks bool `json:"absoluteLinks,omitempty"`

	// Reverse flips page order, for sites listing newest first.
	Reverse bool `json:"reverse,omitempty"`
}

// ContentTable describes a chapter page.
type ContentTable struct {
	Title  extract.Selector `json:"title"`
	Blocks extract.Selector `json:"blocks"`
}

// RequestBuilder builds a search request from user input.
type RequestBuilder func(query string, page int, filters []domain.Filter) (*driven.HTTPRequest, error)

// Config is everything that varies between scraping providers.
type Config struct {
	// ID overrides the derived source ID when non-zero.
	ID      int64
	Name    string
	Lang    string
	BaseURL string
	Version int

	// Listing tables. A nil table disables the listing.
	Popular *ListingTable
	Latest  *ListingTable
	Search  *ListingTable

	Detail   DetailTable
	Chapters ChapterTable
	Content  ContentTable

	// Filters are the ordered search filter definitions.
	Filters []domain.Filter

	// Headers and Cookies are sent with every request.
	Headers map[string]string
	Cookies []*http.Cookie

	// BuildSearchRequest replaces the default search request builder.
	BuildSearchRequest RequestBuilder
}

// Capabilities derives the capability flags from the configured tables.
func (c *Config) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Popular: c.Popular != nil,
		Latest:  c.Latest != nil,
		Search:  c.Search != nil,
		Filters: len(c.Filters) > 0,
	}
}

// Descriptor returns the source identity.
func (c *Config) Descriptor() domain.SourceDescriptor {
	d := domain.NewSourceDescriptor(c.Name, c.Lang, strings.TrimRight(c.BaseURL, "/"), c.Version, c.Capabilities())
	if c.ID != 0 {
		d.ID = c.ID
	}
	return d
}

// Validate checks required fields and selector syntax.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url %q is not absolute", c.BaseURL))
	}
	if strings.TrimSpace(c.Detail.Container) == "" {
		errs = append(errs, errors.New("detail container selector is required"))
	}
	if strings.TrimSpace(c.Chapters.Item) == "" {
		errs = append(errs, errors.New("chapter item selector is required"))
	}
	if c.Content.Blocks.IsZero() {
		errs = append(errs, errors.New("content blocks selector is required"))
	}
	if c.Search == nil && c.BuildSearchRequest != nil {
		errs = append(errs, errors.New("search request builder has no search table"))
	}
	if c.Search != nil && c.BuildSearchRequest == nil && !strings.Contains(c.Search.Endpoint, QueryPlaceholder) {
		errs = append(errs, errors.New("search endpoint has no {query} placeholder"))
	}

	for _, t := range []*ListingTable{c.Popular, c.Latest, c.Search} {
		if t == nil {
			continue
		}
		if strings.TrimSpace(t.Item) == "" {
			errs = append(errs, errors.New("listing item selector is required"))
		}
		errs = append(errs, validateSelectors(extract.Sel(t.Item), t.Title, t.Link, t.Cover, t.NextPage)...)
	}
	errs = append(errs, validateSelectors(
		extract.Sel(c.Detail.Container), c.Detail.Title, c.Detail.Cover, c.Detail.Author,
		c.Detail.Description, c.Detail.Genres, c.Detail.Status,
		extract.Sel(c.Chapters.Item), c.Chapters.Title, c.Chapters.Link, c.Chapters.Date, c.Chapters.Number,
		c.Content.Title, c.Content.Blocks,
	)...)

	if err := errors.Join(errs...); err != nil {
		return domain.ValidationError("source "+c.Name, err)
	}
	return nil
}

func validateSelectors(sels ...extract.Selector) []error {
	var errs []error
	for _, s := range sels {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
