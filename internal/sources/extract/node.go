package extract

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// Node is anything queryable by selector: a document or a set of elements.
type Node interface {
	// Query returns the descendants matching a CSS selector.
	// An invalid selector matches nothing.
	Query(selector string) Node

	// Attr returns the attribute of the first node that has it.
	Attr(name string) string

	// Attrs returns the attribute of every node that has it.
	Attrs(name string) []string

	// Text returns the whitespace-normalised text of all nodes joined
	// by single spaces.
	Text() string

	// Texts returns the normalised text of each node.
	Texts() []string

	// HTML returns the inner markup of the first node.
	HTML() string

	// Len returns the number of nodes.
	Len() int

	// Each calls fn for every node in document order.
	Each(fn func(i int, n Node))

	// First returns the first node, or an empty Node.
	First() Node
}

const absPrefix = "abs:"

type node struct {
	sel  *goquery.Selection
	base *url.URL
}

var _ Node = (*node)(nil)

// Parse builds a document node from markup. baseURL is used to resolve
// "abs:" attributes and may be empty.
func Parse(r io.Reader, baseURL string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, domain.ParseError("malformed markup", err)
	}
	n := &node{sel: doc.Selection}
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			n.base = u
		}
	}
	return n, nil
}

// ParseBytes is Parse over an in-memory body.
func ParseBytes(body []byte, baseURL string) (Node, error) {
	return Parse(bytes.NewReader(body), baseURL)
}

// ParseString is Parse over a string.
func ParseString(markup, baseURL string) (Node, error) {
	return Parse(strings.NewReader(markup), baseURL)
}

func (n *node) wrap(sel *goquery.Selection) Node {
	return &node{sel: sel, base: n.base}
}

func (n *node) Query(selector string) Node {
	if strings.TrimSpace(selector) == "" {
		return n.wrap(n.sel.Slice(0, 0))
	}
	return n.wrap(n.sel.Find(selector))
}

func (n *node) Attr(name string) string {
	key, abs := attrKey(name)
	for i := range n.sel.Nodes {
		if v, ok := n.sel.Eq(i).Attr(key); ok {
			return n.resolve(strings.TrimSpace(v), abs)
		}
	}
	return ""
}

func (n *node) Attrs(name string) []string {
	key, abs := attrKey(name)
	out := make([]string, 0, n.sel.Length())
	n.sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(key); ok {
			out = append(out, n.resolve(strings.TrimSpace(v), abs))
		}
	})
	return out
}

func (n *node) Text() string {
	return strings.Join(n.Texts(), " ")
}

func (n *node) Texts() []string {
	out := make([]string, 0, n.sel.Length())
	n.sel.Each(func(_ int, s *goquery.Selection) {
		if t := normalise(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func (n *node) HTML() string {
	h, err := n.sel.First().Html()
	if err != nil {
		return ""
	}
	return h
}

func (n *node) Len() int {
	return n.sel.Length()
}

func (n *node) Each(fn func(i int, n Node)) {
	n.sel.Each(func(i int, s *goquery.Selection) {
		fn(i, n.wrap(s))
	})
}

func (n *node) First() Node {
	return n.wrap(n.sel.First())
}

func (n *node) resolve(v string, abs bool) string {
	if !abs || v == "" || n.base == nil {
		return v
	}
	ref, err := url.Parse(v)
	if err != nil {
		return v
	}
	return n.base.ResolveReference(ref).String()
}

func attrKey(name string) (string, bool) {
	if strings.HasPrefix(name, absPrefix) {
		return strings.TrimPrefix(name, absPrefix), true
	}
	return name, false
}

// normalise collapses runs of whitespace to single spaces.
func normalise(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
