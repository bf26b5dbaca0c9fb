package builtin

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/sources/extract"
	"github.com/custodia-labs/tomes-cli/internal/sources/scraper"
)

const rlnBaseURL = "https://www.readlightnovel.me"

var rlnGenres = []string{"All", "Action", "Adventure", "Comedy", "Drama", "Fantasy", "Romance", "Sci-fi", "Xianxia"}

var rlnSorts = []string{"Popular", "Latest", "Rating"}

var rlnSortPaths = []string{"most-viewed", "new", "top-rated"}

// ReadLightNovel posts its search form and supports genre and sort
// filters.
func ReadLightNovel() scraper.Config {
	listing := func(endpoint string) *scraper.ListingTable {
		return &scraper.ListingTable{
			Endpoint:       endpoint,
			Item:           "div.top-novel-block",
			Title:          extract.Sel("h2 a"),
			Link:           extract.SelAttr("h2 a", "href"),
			Cover:          extract.SelAttr("div.top-novel-cover img", "src"),
			NextPage:       extract.Sel("ul.pagination li:last-child a[rel=next]"),
			AbsoluteLinks:  true,
			AbsoluteCovers: true,
		}
	}

	return scraper.Config{
		Name:    "ReadLightNovel",
		Lang:    "en",
		BaseURL: rlnBaseURL,
		Version: 2,
		Popular: listing("/top-novels/most-viewed/{page}"),
		Latest:  listing("/top-novels/new/{page}"),
		Search: &scraper.ListingTable{
			Item:          "div.caption-wrap, div.top-novel-block",
			Title:         extract.Sel("a"),
			Link:          extract.SelAttr("a", "href"),
			Cover:         extract.SelAttr("img", "src"),
			AbsoluteLinks: true,
		},
		Detail: scraper.DetailTable{
			Container:   "div.novel",
			Title:       extract.Sel("div.block-title h1"),
			Cover:       extract.SelAttr("div.novel-cover img", "src"),
			Author:      extract.Sel("div.novel-detail-item:contains(Author) li"),
			Description: extract.Sel("div.novel-detail-item:contains(Description) p"),
			Genres:      extract.Sel("div.novel-detail-item:contains(Genre) li a"),
			Status:      extract.Sel("div.novel-detail-item:contains(Status) li"),
		},
		Chapters: scraper.ChapterTable{
			Item:          "ul.chapter-chs > li",
			Title:         extract.Sel("a"),
			Link:          extract.SelAttr("a", "href"),
			AbsoluteLinks: true,
		},
		Content: scraper.ContentTable{
			Title:  extract.Sel("div.block-title h1"),
			Blocks: extract.Sel("div.desc > p, div.chapter-content3 > p"),
		},
		Filters: []domain.Filter{
			{Kind: domain.FilterHeader, Name: "Search by title, or browse with filters"},
			{Kind: domain.FilterText, Name: "Title"},
			{Kind: domain.FilterSeparator},
			{Kind: domain.FilterSelect, Name: "Genre", Options: rlnGenres},
			{Kind: domain.FilterSort, Name: "Sort", Options: rlnSorts},
		},
		Headers:            map[string]string{"Referer": rlnBaseURL + "/"},
		BuildSearchRequest: rlnSearchRequest,
	}
}

// rlnSearchRequest posts the detailed search form. A non-default genre or
// sort switches to the browse listing.
func rlnSearchRequest(query string, page int, filters []domain.Filter) (*driven.HTTPRequest, error) {
	if query == "" {
		if f, ok := domain.FindFilter(filters, "Title"); ok {
			query = f.Text
		}
	}
	genre, _ := domain.FindFilter(filters, "Genre")
	sort, _ := domain.FindFilter(filters, "Sort")

	if query == "" && (genre.State > 0 || sort.State > 0) {
		path := "/genre/" + url.PathEscape(genre.Selected()) + "/" + strconv.Itoa(page)
		if genre.State == 0 && sort.State < len(rlnSortPaths) {
			path = "/top-novels/" + rlnSortPaths[sort.State] + "/" + strconv.Itoa(page)
		}
		return &driven.HTTPRequest{Method: http.MethodGet, URL: path}, nil
	}

	form := url.Values{}
	form.Set("keyword", query)
	form.Set("page", strconv.Itoa(page))
	return &driven.HTTPRequest{
		Method:  http.MethodPost,
		URL:     "/detailed-search",
		Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
		Form:    form,
	}, nil
}
