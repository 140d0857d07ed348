package core

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultBlankRowFilterLimit is the row count at and above which blank rows
// are kept, so very large sheets load without the extra scan.
const DefaultBlankRowFilterLimit = 100000

// ErrNoHeaders is returned when a sheet has no header row or only blank labels.
var ErrNoHeaders = errors.New("sheet has no headers")

// NormalizeOptions controls NormalizeDataset.
type NormalizeOptions struct {
	// BlankRowFilterLimit drops fully blank rows only when the sheet has fewer
	// data rows than this. Zero means DefaultBlankRowFilterLimit; a negative
	// value disables the filter.
	BlankRowFilterLimit int
}

func (o NormalizeOptions) blankRowLimit() int {
	if o.BlankRowFilterLimit == 0 {
		return DefaultBlankRowFilterLimit
	}
	return o.BlankRowFilterLimit
}

// NormalizeDataset builds a Dataset from raw loader output. Column kinds are
// resolved once from the header, then every cell is normalized for its
// column. Rows are padded with blanks or truncated to the header width.
func NormalizeDataset(header []any, rows [][]any, opts NormalizeOptions) (*Dataset, error) {
	labels := make([]string, len(header))
	anyLabel := false
	for i, h := range header {
		labels[i] = NormalizeCell(CellString(h))
		if labels[i] != "" {
			anyLabel = true
		}
	}
	if !anyLabel {
		return nil, ErrNoHeaders
	}

	if len(rows) < opts.blankRowLimit() {
		rows = slices.DeleteFunc(slices.Clone(rows), isBlankRow)
	}

	kinds := ResolveColumnKinds(labels)
	out := make([][]string, len(rows))
	for r, raw := range rows {
		row := make([]string, len(labels))
		for c := range row {
			if c < len(raw) {
				row[c] = NormalizeValue(kinds[c], raw[c])
			}
		}
		out[r] = row
	}

	return &Dataset{Header: labels, Kinds: kinds, Rows: out}, nil
}

func isBlankRow(row []any) bool {
	for _, cell := range row {
		if NormalizeCell(CellString(cell)) != "" {
			return false
		}
	}
	return true
}

// ColumnIndex finds a column by label, ignoring case and surrounding
// whitespace. The first matching column wins.
func (d *Dataset) ColumnIndex(label string) (int, bool) {
	want := strings.ToLower(NormalizeCell(label))
	for i, h := range d.Header {
		if strings.ToLower(h) == want {
			return i, true
		}
	}
	return -1, false
}

// ResolveColumn accepts a column reference that is either a header label or
// a 0-based index. A label match wins, so a column headed "1" is found by
// "1" even when it is not column 1. Callers holding a typed index should use
// CheckColumn instead.
func (d *Dataset) ResolveColumn(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if idx, ok := d.ColumnIndex(ref); ok {
		return idx, nil
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		if err := d.CheckColumn("column", idx); err != nil {
			return -1, err
		}
		return idx, nil
	}
	return -1, &ColumnIndexError{Role: "column", Label: ref, Width: d.Width(), Index: -1}
}

// CheckColumn reports a *ColumnIndexError when idx is outside the header.
// role names the reference in the message.
func (d *Dataset) CheckColumn(role string, idx int) error {
	if idx < 0 || idx >= d.Width() {
		return &ColumnIndexError{Role: role, Index: idx, Width: d.Width()}
	}
	return nil
}

// BlankCounts returns, for every column, how many rows hold the blank sentinel.
func (d *Dataset) BlankCounts() []BlankCount {
	counts := make([]BlankCount, len(d.Header))
	for i, h := range d.Header {
		counts[i].Column = h
	}
	for _, row := range d.Rows {
		for i := range counts {
			if row[i] == "" {
				counts[i].Blanks++
			}
		}
	}
	return counts
}

// DistinctValues returns the sorted distinct values of one column. The blank
// sentinel "" sorts first when present.
func (d *Dataset) DistinctValues(col int) ([]string, error) {
	if err := d.CheckColumn("column", col); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, row := range d.Rows {
		seen[row[col]] = struct{}{}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	slices.Sort(values)
	return values, nil
}

// Filter returns the rows whose value in every filtered column is one of the
// allowed values. An empty allowed list for a column matches nothing.
// Rows are shared with d, not copied.
func (d *Dataset) Filter(filters ColumnFilters) (*Dataset, error) {
	if len(filters) == 0 {
		return d, nil
	}
	allowed := make(map[int]map[string]struct{}, len(filters))
	for col, values := range filters {
		if err := d.CheckColumn("filter", col); err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		allowed[col] = set
	}

	rows := make([][]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		keep := true
		for col, set := range allowed {
			if _, ok := set[row[col]]; !ok {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return &Dataset{Header: d.Header, Kinds: d.Kinds, Rows: rows}, nil
}

// Records returns each row as a map keyed by header label. When labels repeat
// the rightmost column wins.
func (d *Dataset) Records() []map[string]string {
	records := make([]map[string]string, len(d.Rows))
	for r, row := range d.Rows {
		rec := make(map[string]string, len(d.Header))
		for c, h := range d.Header {
			rec[h] = row[c]
		}
		records[r] = rec
	}
	return records
}

// Part selects one side of a merge result.
func (m *MergeResult) Part(name string) (*Dataset, error) {
	switch name {
	case "", "matched":
		return &Dataset{Header: m.Header, Rows: m.Matched}, nil
	case "unmatched":
		return &Dataset{Header: m.SourceHeader, Rows: m.Unmatched}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPart, name)
	}
}
