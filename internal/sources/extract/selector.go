package extract

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Selector is the (selector, attribute) pair every provider table is
// written in. Either half may be empty.
type Selector struct {
	CSS  string `json:"selector,omitempty" toml:"selector"`
	Attr string `json:"att,omitempty" toml:"att"`
}

// Sel is shorthand for a selector that reads text.
func Sel(css string) Selector {
	return Selector{CSS: css}
}

// SelAttr is shorthand for a selector that reads an attribute.
func SelAttr(css, attr string) Selector {
	return Selector{CSS: css, Attr: attr}
}

// IsZero reports whether both halves are empty.
func (s Selector) IsZero() bool {
	return strings.TrimSpace(s.CSS) == "" && strings.TrimSpace(s.Attr) == ""
}

// Validate checks that the CSS half compiles.
func (s Selector) Validate() error {
	if strings.TrimSpace(s.CSS) == "" {
		return nil
	}
	if _, err := cascadia.ParseGroup(s.CSS); err != nil {
		return fmt.Errorf("selector %q: %w", s.CSS, err)
	}
	return nil
}

// Resolve applies the selector rules to n and returns a single string.
func Resolve(n Node, s Selector) string {
	css, attr := strings.TrimSpace(s.CSS), strings.TrimSpace(s.Attr)
	switch {
	case n == nil:
		return ""
	case css == "" && attr != "":
		return n.Attr(attr)
	case css != "" && attr == "":
		return n.Query(css).Text()
	case css != "" && attr != "":
		return n.Query(css).Attr(attr)
	default:
		return ""
	}
}

// ResolveList applies the selector rules to n and returns one string per
// matched node.
func ResolveList(n Node, s Selector) []string {
	css, attr := strings.TrimSpace(s.CSS), strings.TrimSpace(s.Attr)
	switch {
	case n == nil:
		return nil
	case css == "" && attr != "":
		return n.Attrs(attr)
	case css != "" && attr == "":
		return n.Query(css).Texts()
	case css != "" && attr != "":
		return n.Query(css).Attrs(attr)
	default:
		return nil
	}
}
