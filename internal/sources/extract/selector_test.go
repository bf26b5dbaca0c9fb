package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<div class="item" data-id="1"><a class="title" href="/book/1">  First
   Book </a><img src="/c/1.jpg"></div>
<div class="item" data-id="2"><a class="title" href="/book/2">Second</a><img data-src="/c/2.jpg"></div>
<div class="item"><a class="title">   </a></div>
<a class="next" href="?page=2">Next</a>
</body></html>`

func parseListing(t *testing.T) Node {
	t.Helper()
	doc, err := ParseString(listingHTML, "https://example.com/list")
	require.NoError(t, err)
	return doc
}

func TestResolve_Rules(t *testing.T) {
	doc := parseListing(t)
	item := doc.Query(".item").First()

	tests := []struct {
		name string
		node Node
		sel  Selector
		want string
	}{
		{"attribute only reads own attribute", item, Selector{Attr: "data-id"}, "1"},
		{"selector only reads text", item, Sel("a.title"), "First Book"},
		{"both read selected attribute", item, SelAttr("a.title", "href"), "/book/1"},
		{"neither is empty", item, Selector{}, ""},
		{"missing match is empty", item, Sel(".missing"), ""},
		{"missing attribute is empty", item, SelAttr("img", "alt"), ""},
		{"abs prefix resolves", item, SelAttr("a.title", "abs:href"), "https://example.com/book/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.node, tt.sel))
		})
	}
}

func TestResolve_TextJoinsAllMatches(t *testing.T) {
	doc := parseListing(t)

	assert.Equal(t, "First Book Second", Resolve(doc, Sel("a.title")))
}

func TestResolve_AttrTakesFirstNodeThatHasIt(t *testing.T) {
	doc := parseListing(t)

	assert.Equal(t, "/c/2.jpg", Resolve(doc, SelAttr("img", "data-src")))
}

func TestResolveList_Rules(t *testing.T) {
	doc := parseListing(t)

	assert.Equal(t, []string{"/book/1", "/book/2"}, ResolveList(doc, SelAttr("a.title", "href")))
	assert.Equal(t, []string{"First Book", "Second"}, ResolveList(doc, Sel("a.title")))
	assert.Equal(t, []string{"1", "2"}, ResolveList(doc.Query(".item"), Selector{Attr: "data-id"}))
	assert.Empty(t, ResolveList(doc, Selector{}))
}

func TestNode_QueryAndEach(t *testing.T) {
	doc := parseListing(t)
	items := doc.Query(".item")

	assert.Equal(t, 3, items.Len())
	assert.Equal(t, 1, doc.Query("a.next").Len())
	assert.Equal(t, 0, doc.Query("").Len())

	var hrefs []string
	items.Each(func(_ int, n Node) {
		hrefs = append(hrefs, Resolve(n, SelAttr("a", "href")))
	})
	assert.Equal(t, []string{"/book/1", "/book/2", ""}, hrefs)
}

func TestNode_InvalidSelectorMatchesNothing(t *testing.T) {
	doc := parseListing(t)

	assert.Equal(t, 0, doc.Query("div[[").Len())
}

func TestNode_HTML(t *testing.T) {
	doc, err := ParseString(`<div id="c"><p>a</p></div>`, "")
	require.NoError(t, err)

	assert.Equal(t, "<p>a</p>", doc.Query("#c").HTML())
}

func TestSelector_Validate(t *testing.T) {
	assert.NoError(t, Sel("div.item > a").Validate())
	assert.NoError(t, Selector{Attr: "href"}.Validate())
	assert.Error(t, Sel("div[[").Validate())
}

func TestSelector_IsZero(t *testing.T) {
	assert.True(t, Selector{}.IsZero())
	assert.True(t, Selector{CSS: "  "}.IsZero())
	assert.False(t, Sel("a").IsZero())
}
