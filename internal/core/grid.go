package core

import (
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Span limits follow HTML's own clamping of rowspan and colspan.
const (
	MaxRowSpan = 65534
	MaxColSpan = 1000
)

// DefaultMaxGridCells caps the positions ExportPivotCSV will materialize
// when no other limit is given.
const DefaultMaxGridCells = 1_000_000

func clampSpan(v, limit int) int {
	if v < 1 {
		return 1
	}
	if v > limit {
		return limit
	}
	return v
}

// Spans returns the cell's effective rowspan and colspan.
func (c RenderedCell) Spans() (rows, cols int) {
	return clampSpan(c.RowSpan, MaxRowSpan), clampSpan(c.ColSpan, MaxColSpan)
}

// placement walks a rendered table the way a browser lays it out and calls
// visit for every logical position each cell covers. A rowspan stops at the
// last rendered row. fresh is false when an
// earlier cell already holds the position; the position then keeps its first
// owner. The walk stops when visit returns false.
type placement struct {
	occupied [][]bool
}

type visitFunc func(r, c int, fresh, anchor bool, ri, ci int, cell RenderedCell) bool

func (p *placement) ensureRow(r int) {
	for len(p.occupied) <= r {
		p.occupied = append(p.occupied, nil)
	}
}

func (p *placement) taken(r, c int) bool {
	return c < len(p.occupied[r]) && p.occupied[r][c]
}

func (p *placement) take(r, c int) {
	row := p.occupied[r]
	for len(row) <= c {
		row = append(row, false)
	}
	row[c] = true
	p.occupied[r] = row
}

func (p *placement) walk(t RenderedTable, visit visitFunc) {
	for ri, cells := range t.Rows {
		p.ensureRow(ri)
		col := 0
		for ci, cell := range cells {
			for p.taken(ri, col) {
				col++
			}
			rs, cs := cell.Spans()
			rs = min(rs, len(t.Rows)-ri)
			for dr := 0; dr < rs; dr++ {
				p.ensureRow(ri + dr)
				for dc := 0; dc < cs; dc++ {
					r, c := ri+dr, col+dc
					fresh := !p.taken(r, c)
					if fresh {
						p.take(r, c)
					}
					if !visit(r, c, fresh, dr == 0 && dc == 0, ri, ci, cell) {
						return
					}
				}
			}
			col += cs
		}
	}
}

// Linearize rebuilds the logical grid of a rendered table. Each cell's text
// (NFKC-normalized and trimmed) lands at its top-left position and every
// other position it covers holds "". A position already filled by an earlier
// cell is never overwritten. Rowspans reaching past the last rendered row are
// cut off there, and every row is padded to the widest.
func Linearize(t RenderedTable) Grid {
	var p placement
	var grid Grid
	p.walk(t, func(r, c int, fresh, anchor bool, _, _ int, cell RenderedCell) bool {
		if !fresh {
			return true
		}
		for len(grid) <= r {
			grid = append(grid, nil)
		}
		for len(grid[r]) <= c {
			grid[r] = append(grid[r], "")
		}
		if anchor {
			grid[r][c] = strings.TrimSpace(norm.NFKC.String(cell.Text))
		}
		return true
	})

	// Rows with no rendered cells still count.
	for len(grid) < len(t.Rows) {
		grid = append(grid, nil)
	}
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	for i, row := range grid {
		for len(row) < width {
			row = append(row, "")
		}
		grid[i] = row
	}
	return grid
}

// CoveredCells returns the number of logical positions the cells of t cover
// once spans are clamped and clipped. Overlapping cells are counted twice, so
// the result bounds the size of Linearize's grid from above. It runs in time
// proportional to the number of rendered cells.
func (t RenderedTable) CoveredCells() int {
	total := 0
	for ri, cells := range t.Rows {
		for _, cell := range cells {
			rs, cs := cell.Spans()
			total += min(rs, len(t.Rows)-ri) * cs
		}
	}
	return total
}

// Validate reports the first logical position claimed by two cells.
// Tables laid out by a browser from well-formed markup never overlap;
// hand-built ones can.
func (t RenderedTable) Validate() error {
	var p placement
	var overlap *SpanOverlapError
	p.walk(t, func(r, c int, fresh, _ bool, ri, ci int, _ RenderedCell) bool {
		if fresh {
			return true
		}
		overlap = &SpanOverlapError{Row: r, Col: c, RenderedRow: ri, RenderedCell: ci}
		return false
	})
	if overlap != nil {
		return overlap
	}
	return nil
}

// SerializeCSV writes a grid as CSV with every cell quoted, embedded quotes
// doubled, and no trailing newline.
func SerializeCSV(g Grid) string {
	var b strings.Builder
	_ = WriteCSV(&b, g)
	return b.String()
}

// WriteCSV streams the SerializeCSV form of g to w.
func WriteCSV(w io.Writer, g Grid) error {
	sw, ok := w.(io.StringWriter)
	if !ok {
		sw = stringWriter{w}
	}
	for r, row := range g {
		if r > 0 {
			if _, err := sw.WriteString("\n"); err != nil {
				return err
			}
		}
		for c, cell := range row {
			if c > 0 {
				if _, err := sw.WriteString(","); err != nil {
					return err
				}
			}
			if _, err := sw.WriteString(`"` + strings.ReplaceAll(cell, `"`, `""`) + `"`); err != nil {
				return err
			}
		}
	}
	return nil
}

type stringWriter struct{ w io.Writer }

func (s stringWriter) WriteString(str string) (int, error) {
	return s.w.Write([]byte(str))
}

// ExportPivotCSV validates and linearizes a rendered pivot table and returns
// its CSV text. Tables covering more than maxCells positions are refused with
// a *GridTooLargeError; maxCells <= 0 means DefaultMaxGridCells.
func ExportPivotCSV(t *RenderedTable, maxCells int) (string, error) {
	if t == nil || len(t.Rows) == 0 {
		return "", ErrNoRenderableTable
	}
	if maxCells <= 0 {
		maxCells = DefaultMaxGridCells
	}
	if n := t.CoveredCells(); n > maxCells {
		return "", &GridTooLargeError{Cells: n, Limit: maxCells}
	}
	if err := t.Validate(); err != nil {
		return "", err
	}
	return SerializeCSV(Linearize(*t)), nil
}
