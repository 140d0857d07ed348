package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidColumn is matched by every *ColumnIndexError.
	ErrInvalidColumn = errors.New("invalid column index")

	// ErrSpanOverlap is matched by every *SpanOverlapError.
	ErrSpanOverlap = errors.New("overlapping cell spans")

	// ErrGridTooLarge is matched by every *GridTooLargeError.
	ErrGridTooLarge = errors.New("pivot table too large")

	// ErrNoRenderableTable means there was no table to export.
	ErrNoRenderableTable = errors.New("no pivot results found for export")

	// ErrDatasetNotFound means no loaded dataset has the requested id.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrUnsupportedFile means the upload is neither .xlsx nor .csv.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrNoSheets means the workbook has no sheets to load.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrUnknownPart means a merge part other than matched or unmatched was requested.
	ErrUnknownPart = errors.New("unknown merge part")
)

// ColumnIndexError reports a column reference outside a dataset's header.
type ColumnIndexError struct {
	Role  string // which argument was wrong, e.g. "from key"
	Index int
	Label string // set when the reference was a label that matched nothing
	Width int
}

func (e *ColumnIndexError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s: no column named %q", ErrInvalidColumn, e.Label)
	}
	return fmt.Sprintf("%s: %s %d outside [0, %d)", ErrInvalidColumn, e.Role, e.Index, e.Width)
}

func (e *ColumnIndexError) Unwrap() error { return ErrInvalidColumn }

// SpanOverlapError reports the first grid position claimed by two cells.
type SpanOverlapError struct {
	Row, Col int
	// Position of the rendered cell that tried to claim the occupied slot.
	RenderedRow, RenderedCell int
}

func (e *SpanOverlapError) Error() string {
	return fmt.Sprintf("%s: grid position (%d, %d) claimed again by rendered cell %d of row %d",
		ErrSpanOverlap, e.Row, e.Col, e.RenderedCell, e.RenderedRow)
}

func (e *SpanOverlapError) Unwrap() error { return ErrSpanOverlap }

// GridTooLargeError reports a rendered table whose spans cover more grid
// positions than the export limit.
type GridTooLargeError struct {
	Cells, Limit int
}

func (e *GridTooLargeError) Error() string {
	return fmt.Sprintf("%s: spans cover %d positions, limit is %d", ErrGridTooLarge, e.Cells, e.Limit)
}

func (e *GridTooLargeError) Unwrap() error { return ErrGridTooLarge }
