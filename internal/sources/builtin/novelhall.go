package builtin

import (
	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/sources/extract"
	"github.com/custodia-labs/tomes-cli/internal/sources/scraper"
)

// NovelHall is a listing site with paginated popular and latest pages
// and a single-page chapter index.
func NovelHall() scraper.Config {
	return scraper.Config{
		Name:    "NovelHall",
		Lang:    "en",
		BaseURL: "https://www.novelhall.com",
		Version: 1,
		Popular: &scraper.ListingTable{
			Endpoint:      "/all2022-{page}.html",
			Item:          "li.btm",
			Title:         extract.Sel("a"),
			Link:          extract.SelAttr("a", "href"),
			NextPage:      extract.SelAttr("div.page-nav a:contains(Next)", "href"),
			AbsoluteLinks: true,
		},
		Latest: &scraper.ListingTable{
			Endpoint:      "/lastupdate-{page}.html",
			Item:          ".section3 table tbody tr",
			Title:         extract.Sel("td:nth-child(2) a"),
			Link:          extract.SelAttr("td:nth-child(2) a", "href"),
			NextPage:      extract.SelAttr("div.page-nav a:contains(Next)", "href"),
			AbsoluteLinks: true,
		},
		Search: &scraper.ListingTable{
			Endpoint:      "/index.php?s=so&module=book&keyword={query}",
			Item:          "td:nth-child(2)",
			Title:         extract.Sel("a"),
			Link:          extract.SelAttr("a", "href"),
			AbsoluteLinks: true,
		},
		Detail: scraper.DetailTable{
			Container:      "div.book-main",
			Title:          extract.Sel("div.book-info > h1"),
			Cover:          extract.SelAttr("div.book-img img", "src"),
			Author:         extract.Sel("div.book-info span.blue:contains(Author)"),
			Description:    extract.Sel("span.js-close-wrap"),
			Genres:         extract.Sel("div.book-info a.red"),
			Status:         extract.Sel("div.book-info span.blue:contains(Status)"),
			AbsoluteCovers: true,
			StatusMap: map[string]domain.BookStatus{
				"status：active":    domain.StatusOngoing,
				"status：completed": domain.StatusCompleted,
			},
		},
		Chapters: scraper.ChapterTable{
			Item:          "#morelist ul > li",
			Title:         extract.Sel("a"),
			Link:          extract.SelAttr("a", "href"),
			AbsoluteLinks: true,
		},
		Content: scraper.ContentTable{
			Title:  extract.Sel("div.single-header h1"),
			Blocks: extract.Sel("div.entry-content"),
		},
	}
}
