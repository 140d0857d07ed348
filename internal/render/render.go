// Package render reads the rendered HTML of a pivot table into a
// core.RenderedTable so it can be linearized and exported.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// PivotTableClass marks the table produced by the pivot UI.
const PivotTableClass = "pvtTable"

// ErrNoTable is returned when the document holds no table. It matches
// core.ErrNoRenderableTable.
var ErrNoTable = fmt.Errorf("render: %w", core.ErrNoRenderableTable)

// ParseTable parses an HTML document or fragment and returns the pivot
// table in it, or the first table when none carries PivotTableClass.
func ParseTable(r io.Reader) (*core.RenderedTable, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := findTable(doc)
	if table == nil {
		return nil, ErrNoTable
	}
	return readTable(table), nil
}

// ParseString is ParseTable for an in-memory document.
func ParseString(s string) (*core.RenderedTable, error) {
	return ParseTable(strings.NewReader(s))
}

func findTable(doc *html.Node) *html.Node {
	var first *html.Node
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.Table {
			continue
		}
		if hasClass(n, PivotTableClass) {
			return n
		}
		if first == nil {
			first = n
		}
	}
	return first
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && a.Namespace == "" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// readTable collects the table's own rows in document order. Rows of tables
// nested inside cells are left to those cells' text.
func readTable(table *html.Node) *core.RenderedTable {
	out := &core.RenderedTable{}
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				out.Rows = append(out.Rows, readRow(c))
			case atom.Thead, atom.Tbody, atom.Tfoot:
				visit(c)
			}
		}
	}
	visit(table)
	return out
}

func readRow(tr *html.Node) []core.RenderedCell {
	var cells []core.RenderedCell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, core.RenderedCell{
			Text:    textContent(c),
			RowSpan: spanAttr(c, "rowspan"),
			ColSpan: spanAttr(c, "colspan"),
		})
	}
	return cells
}

// spanAttr reads a span attribute the way browsers do for missing or
// malformed values: anything that does not start with digits is 1.
func spanAttr(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key != key {
			continue
		}
		v := strings.TrimSpace(a.Val)
		end := 0
		for end < len(v) && v[end] >= '0' && v[end] <= '9' {
			end++
		}
		span, err := strconv.Atoi(v[:end])
		if err != nil || span < 1 {
			return 1
		}
		return span
	}
	return 1
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}
