package core

import "time"

// ColumnKind tells the normalizer how to treat the cells of a column.
// It is resolved once per load from the header, never per cell.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindDate
)

// String returns the kind name used in API responses.
func (k ColumnKind) String() string {
	switch k {
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// Dataset is a header plus rows of normalized display strings.
// Every row has exactly len(Header) cells.
type Dataset struct {
	Header []string
	Kinds  []ColumnKind
	Rows   [][]string
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	return len(d.Header)
}

// BlankCount is the number of blank cells in one column.
type BlankCount struct {
	Column string `json:"column"`
	Blanks int    `json:"blanks"`
}

// BlankLabel is how UIs display the blank sentinel in value lists.
const BlankLabel = "(Blanks)"

// ColumnFilters selects, per column index, the values a row may hold in that
// column. A column missing from the map is unfiltered. It is passed explicitly
// to each call; nothing holds it between calls.
type ColumnFilters map[int][]string

// MergeResult is the outcome of a key join. Unmatched rows keep the shape of
// the source dataset, described by SourceHeader.
type MergeResult struct {
	Header       []string   `json:"header"`
	SourceHeader []string   `json:"sourceHeader"`
	Matched      [][]string `json:"matched"`
	Unmatched    [][]string `json:"unmatched"`
}

// MergeMode selects the join flavor.
type MergeMode string

const (
	ModeVLookup MergeMode = "vlookup" // full counterpart row
	ModeXLookup MergeMode = "xlookup" // single return column
)

// RenderedCell is one cell of a rendered table. A span below 1 means 1.
type RenderedCell struct {
	Text    string `json:"text"`
	RowSpan int    `json:"rowspan,omitempty"`
	ColSpan int    `json:"colspan,omitempty"`
}

// RenderedTable is a table as displayed: each rendered row lists only the
// cells that start in it, so a cell spanning rows is absent from the rows
// below its anchor.
type RenderedTable struct {
	Rows [][]RenderedCell `json:"rows"`
}

// Grid is a rectangular table of strings, one per logical position.
type Grid [][]string

// StoredDataset is a loaded dataset with its origin.
type StoredDataset struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	Sheet      string    `json:"sheet"`
	Sheets     []string  `json:"sheets"`
	Dataset    *Dataset  `json:"-"`
	LoadedAt   time.Time `json:"loadedAt"`
	LastAccess time.Time `json:"lastAccess"`
}

// DatasetSummary describes a stored dataset without its rows.
type DatasetSummary struct {
	ID       string    `json:"id"`
	FileName string    `json:"fileName"`
	Sheet    string    `json:"sheet"`
	Sheets   []string  `json:"sheets"`
	Header   []string  `json:"header"`
	Kinds    []string  `json:"kinds"`
	RowCount int       `json:"rowCount"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Summary returns the row-less description of s.
func (s *StoredDataset) Summary() DatasetSummary {
	kinds := make([]string, len(s.Dataset.Kinds))
	for i, k := range s.Dataset.Kinds {
		kinds[i] = k.String()
	}
	return DatasetSummary{
		ID:       s.ID,
		FileName: s.FileName,
		Sheet:    s.Sheet,
		Sheets:   s.Sheets,
		Header:   s.Dataset.Header,
		Kinds:    kinds,
		RowCount: len(s.Dataset.Rows),
		LoadedAt: s.LoadedAt,
	}
}
