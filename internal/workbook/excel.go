package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/xuri/excelize/v2"
)

// Excel is an opened .xlsx workbook.
type Excel struct {
	f *excelize.File
}

// OpenExcel reads an .xlsx workbook from r.
func OpenExcel(r io.Reader) (*Excel, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Excel{f: f}, nil
}

// NewExcel wraps an already opened excelize file.
func NewExcel(f *excelize.File) *Excel {
	return &Excel{f: f}
}

func (e *Excel) Close() error { return e.f.Close() }

// SheetNames returns the sheets in workbook order.
func (e *Excel) SheetNames() []string {
	return e.f.GetSheetList()
}

// ReadSheet returns the first row as header and the rest as rows. Cells hold
// raw values: text as string, numbers with a fraction or exponent as
// float64, whole numbers as their digit string.
func (e *Excel) ReadSheet(name string) ([]any, [][]any, error) {
	rows, err := e.f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	out := make([][]any, len(rows))
	for r, row := range rows {
		cells := make([]any, len(row))
		for c, raw := range row {
			cells[c] = e.cellValue(name, r, c, raw)
		}
		out[r] = cells
	}
	return out[0], out[1:], nil
}

// cellValue keeps raw strings except for numeric cells whose raw text is not
// a plain digit run, such as a serial date with a time of day. Those become
// float64 so the serial conversion still applies. Digit runs stay strings,
// which FormatDateValue already treats as serials and which keeps text keys
// like "007" intact.
func (e *Excel) cellValue(sheet string, r, c int, raw string) any {
	if raw == "" || !strings.ContainsAny(raw, ".eE") {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	axis, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return raw
	}
	typ, err := e.f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		return f
	default:
		return raw
	}
}

// RenderedTable returns a sheet as displayed: formatted cell text, merged
// ranges as spans, and cells covered by a merge left out of their row.
func (e *Excel) RenderedTable(sheet string) (*core.RenderedTable, error) {
	rows, err := e.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	merges, err := e.f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("read merged cells of %q: %w", sheet, err)
	}

	type pos struct{ r, c int }
	anchors := make(map[pos]core.RenderedCell)
	covered := make(map[pos]bool)
	height := len(rows)
	for _, mc := range merges {
		sc, sr, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		ec, er, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		anchors[pos{sr - 1, sc - 1}] = core.RenderedCell{
			Text:    mc.GetCellValue(),
			RowSpan: er - sr + 1,
			ColSpan: ec - sc + 1,
		}
		for r := sr - 1; r < er; r++ {
			for c := sc - 1; c < ec; c++ {
				if r != sr-1 || c != sc-1 {
					covered[pos{r, c}] = true
				}
			}
		}
		height = max(height, er)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for p := range anchors {
		width = max(width, p.c+1)
	}

	table := &core.RenderedTable{Rows: make([][]core.RenderedCell, height)}
	for r := 0; r < height; r++ {
		var cells []core.RenderedCell
		for c := 0; c < width; c++ {
			p := pos{r, c}
			if covered[p] {
				continue
			}
			if anchor, ok := anchors[p]; ok {
				cells = append(cells, anchor)
				continue
			}
			text := ""
			if r < len(rows) && c < len(rows[r]) {
				text = rows[r][c]
			}
			cells = append(cells, core.RenderedCell{Text: text})
		}
		table.Rows[r] = trimTrailingBlanks(cells)
	}
	return table, nil
}

// trimTrailingBlanks drops unspanned empty cells at the end of a row; the
// linearizer pads rows back to a common width.
func trimTrailingBlanks(cells []core.RenderedCell) []core.RenderedCell {
	end := len(cells)
	for end > 0 {
		c := cells[end-1]
		if c.Text != "" || c.RowSpan > 1 || c.ColSpan > 1 {
			break
		}
		end--
	}
	return cells[:end]
}
