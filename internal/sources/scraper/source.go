package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/sources/extract"
)

// ErrListingUnsupported is returned when a listing table is not configured.
var ErrListingUnsupported = fmt.Errorf("listing %w", domain.ErrUnsupportedType)

// Source is a scraping provider driven entirely by a Config.
type Source struct {
	cfg    Config
	desc   domain.SourceDescriptor
	base   *url.URL
	client driven.HTTPClient
}

var _ driven.Source = (*Source)(nil)

// New validates cfg and builds a Source executing requests with client.
func New(cfg Config, client driven.HTTPClient) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("scraper %s: %w: nil http client", cfg.Name, domain.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, domain.ValidationError("base url", err)
	}
	return &Source{cfg: cfg, desc: cfg.Descriptor(), base: base, client: client}, nil
}

// Descriptor returns the source identity.
func (s *Source) Descriptor() domain.SourceDescriptor {
	return s.desc
}

// Filters returns the ordered filter definitions.
func (s *Source) Filters() []domain.Filter {
	if len(s.cfg.Filters) == 0 {
		return nil
	}
	out := make([]domain.Filter, len(s.cfg.Filters))
	copy(out, s.cfg.Filters)
	return out
}

// FetchPopular returns a page of the popular listing.
func (s *Source) FetchPopular(ctx context.Context, page int) (domain.ListingPage, error) {
	return s.fetchListing(ctx, s.cfg.Popular, "", page)
}

// FetchLatest returns a page of the latest listing.
func (s *Source) FetchLatest(ctx context.Context, page int) (domain.ListingPage, error) {
	return s.fetchListing(ctx, s.cfg.Latest, "", page)
}

// FetchSearch returns a page of search results.
func (s *Source) FetchSearch(
	ctx context.Context, query string, page int, filters []domain.Filter,
) (domain.ListingPage, error) {
	if s.cfg.BuildSearchRequest == nil {
		return s.fetchListing(ctx, s.cfg.Search, query, page)
	}
	table := s.cfg.Search
	if table == nil {
		return domain.ListingPage{}, ErrListingUnsupported
	}
	req, err := s.cfg.BuildSearchRequest(query, page, filters)
	if err != nil {
		return domain.ListingPage{}, fmt.Errorf("build search request: %w", err)
	}
	doc, err := s.document(ctx, req)
	if err != nil {
		return domain.ListingPage{}, err
	}
	return s.parseListing(doc, table, page), nil
}

// FetchDetail returns the full description of a book.
func (s *Source) FetchDetail(ctx context.Context, book domain.BookSummary) (domain.BookDetail, error) {
	doc, err := s.document(ctx, s.get(book.Key))
	if err != nil {
		return domain.BookDetail{}, err
	}
	detail, err := s.parseDetail(doc)
	if err != nil {
		return domain.BookDetail{}, err
	}
	detail.Key = book.Key
	if detail.Title == "" {
		detail.Title = book.Title
	}
	if detail.Cover == "" {
		detail.Cover = book.Cover
	}
	return detail, nil
}

// FetchChapterList returns the chapters of a book in reading order.
func (s *Source) FetchChapterList(ctx context.Context, book domain.BookSummary) ([]domain.ChapterSummary, error) {
	doc, err := s.document(ctx, s.get(book.Key))
	if err != nil {
		return nil, err
	}
	return s.parseChapters(doc)
}

// FetchChapterContent returns the body of a chapter.
func (s *Source) FetchChapterContent(ctx context.Context, chapter domain.ChapterSummary) (domain.ContentPage, error) {
	doc, err := s.document(ctx, s.get(chapter.Key))
	if err != nil {
		return domain.ContentPage{}, err
	}
	return s.parseContent(doc)
}

func (s *Source) fetchListing(ctx context.Context, table *ListingTable, query string, page int) (domain.ListingPage, error) {
	if table == nil {
		return domain.ListingPage{}, ErrListingUnsupported
	}
	endpoint := strings.ReplaceAll(table.Endpoint, PagePlaceholder, strconv.Itoa(page))
	endpoint = strings.ReplaceAll(endpoint, QueryPlaceholder, url.QueryEscape(query))

	doc, err := s.document(ctx, s.get(endpoint))
	if err != nil {
		return domain.ListingPage{}, err
	}
	return s.parseListing(doc, table, page), nil
}

// get builds a GET request for a source-relative or absolute key.
func (s *Source) get(key string) *driven.HTTPRequest {
	return &driven.HTTPRequest{Method: http.MethodGet, URL: s.absolute(key)}
}

// document executes req with the configured headers and cookies and
// parses the body.
func (s *Source) document(ctx context.Context, req *driven.HTTPRequest) (extract.Node, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.URL = s.absolute(req.URL)
	headers := map[string]string{"Cache-Control": "max-age=0"}
	for k, v := range s.cfg.Headers {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	req.Headers = headers
	req.Cookies = append(append([]*http.Cookie(nil), s.cfg.Cookies...), req.Cookies...)

	logger.Debug("%s: %s %s", s.cfg.Name, req.Method, req.URL)
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Name, err)
	}

	baseURL := resp.URL
	if baseURL == "" {
		baseURL = req.URL
	}
	doc, err := extract.ParseBytes(resp.Body, baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Name, err)
	}
	return doc, nil
}

func (s *Source) parseListing(doc extract.Node, table *ListingTable, page int) domain.ListingPage {
	var books []domain.BookSummary
	doc.Query(table.Item).Each(func(_ int, item extract.Node) {
		title := strings.TrimSpace(extract.Resolve(item, table.Title))
		if title == "" {
			return
		}
		key := strings.TrimSpace(extract.Resolve(item, table.Link))
		if key == "" {
			return
		}
		if table.AbsoluteLinks {
			key = s.absolute(key)
		}
		cover := strings.TrimSpace(extract.Resolve(item, table.Cover))
		if table.AbsoluteCovers && cover != "" {
			cover = s.absolute(cover)
		}
		books = append(books, domain.BookSummary{Key: key, Title: title, Cover: cover})
	})

	return domain.ListingPage{Books: books, HasNextPage: hasNextPage(doc, table, page)}
}

// hasNextPage derives pagination from the next-page selector. A missing
// selector means no next page.
func hasNextPage(doc extract.Node, table *ListingTable, page int) bool {
	switch {
	case table.InfinitePage:
		return true
	case table.MaxPage > 0:
		return page < table.MaxPage
	case table.NextPage.IsZero():
		return false
	case table.NextPageValue != "":
		return strings.TrimSpace(extract.Resolve(doc, table.NextPage)) == table.NextPageValue
	case strings.TrimSpace(table.NextPage.CSS) != "":
		return doc.Query(table.NextPage.CSS).Len() > 0
	default:
		return strings.TrimSpace(extract.Resolve(doc, table.NextPage)) != ""
	}
}

func (s *Source) parseDetail(doc extract.Node) (domain.BookDetail, error) {
	t := s.cfg.Detail
	root := doc.Query(t.Container).First()
	if root.Len() == 0 {
		return domain.BookDetail{}, domain.ParseError(
			fmt.Sprintf("%s: no detail container matching %q", s.cfg.Name, t.Container), nil)
	}

	var paragraphs []string
	for _, p := range extract.ResolveList(root, t.Description) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	var genres []string
	for _, g := range extract.ResolveList(root, t.Genres) {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	cover := strings.TrimSpace(extract.Resolve(root, t.Cover))
	if t.AbsoluteCovers && cover != "" {
		cover = s.absolute(cover)
	}

	return domain.BookDetail{
		Title:       strings.TrimSpace(extract.Resolve(root, t.Title)),
		Cover:       cover,
		Author:      strings.TrimSpace(extract.Resolve(root, t.Author)),
		Description: strings.Join(paragraphs, "\n\n"),
		Genres:      genres,
		Status:      s.status(extract.Resolve(root, t.Status)),
	}, nil
}

func (s *Source) status(text string) domain.BookStatus {
	key := strings.ToLower(strings.TrimSpace(text))
	if st, ok := s.cfg.Detail.StatusMap[key]; ok {
		return st
	}
	return domain.ParseBookStatus(key)
}

func (s *Source) parseChapters(doc extract.Node) ([]domain.ChapterSummary, error) {
	t := s.cfg.Chapters
	items := doc.Query(t.Item)
	chapters := make([]domain.ChapterSummary, 0, items.Len())
	items.Each(func(_ int, item extract.Node) {
		title := strings.TrimSpace(extract.Resolve(item, t.Title))
		key := strings.TrimSpace(extract.Resolve(item, t.Link))
		if title == "" || key == "" {
			return
		}
		if t.AbsoluteLinks {
			key = s.absolute(key)
		}
		ch := domain.ChapterSummary{Key: key, Title: title}
		if raw := strings.TrimSpace(extract.Resolve(item, t.Date)); raw != "" && t.DateLayout != "" {
			if ts, err := time.Parse(t.DateLayout, raw); err == nil {
				ch.UploadedAt = &ts
			}
		}
		if raw := strings.TrimSpace(extract.Resolve(item, t.Number)); raw != "" {
			if n, err := strconv.ParseFloat(raw, 64); err == nil {
				ch.Number = &n
			}
		}
		if ch.Number == nil {
			ch.Number = ChapterNumber(title)
		}
		chapters = append(chapters, ch)
	})

	if t.Reverse {
		for i, j := 0, len(chapters)-1; i < j; i, j = i+1, j-1 {
			chapters[i], chapters[j] = chapters[j], chapters[i]
		}
	}
	return chapters, nil
}

func (s *Source) parseContent(doc extract.Node) (domain.ContentPage, error) {
	t := s.cfg.Content
	var blocks []string
	if title := strings.TrimSpace(extract.Resolve(doc, t.Title)); title != "" {
		blocks = append(blocks, title)
	}
	found := false
	for _, b := range extract.ResolveList(doc, t.Blocks) {
		found = true
		if b = strings.TrimSpace(b); b != "" {
			blocks = append(blocks, b)
		}
	}
	if !found {
		return domain.ContentPage{}, domain.ParseError(
			fmt.Sprintf("%s: no content matching %q", s.cfg.Name, t.Blocks.CSS), nil)
	}
	return domain.ContentPage{Blocks: blocks}, nil
}

// absolute resolves a source-relative key against the base URL.
func (s *Source) absolute(key string) string {
	ref, err := url.Parse(key)
	if err != nil {
		return key
	}
	if ref.IsAbs() {
		return key
	}
	return s.base.ResolveReference(ref).String()
}

// IsUnsupported reports whether err means the listing is not configured.
func IsUnsupported(err error) bool {
	return errors.Is(err, domain.ErrUnsupportedType)
}
