// Package extract is the single extraction primitive used by every
// scraping source: a uniform query surface over a parsed markup tree.
//
// Documents and elements share one Node type backed by goquery, so the
// selector rules below are implemented once:
//
//   - attribute only: the node's own attribute
//   - selector only: the text of the selected nodes
//   - selector and attribute: the attribute of the selected nodes
//   - neither: empty
//
// Attribute names prefixed with "abs:" resolve the value against the
// document's base URL.
package extract
