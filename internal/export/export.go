// Package export writes datasets and merge results as CSV, JSON or Parquet.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// Format is an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts csv, json or parquet in any case. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the file extension for f, with the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// FileName builds a download name from base, replacing characters that are
// awkward in Content-Disposition headers.
func (f Format) FileName(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "export"
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\r', '\n':
			return '_'
		}
		return r
	}, base)
	return base + f.Extension()
}

// Write encodes ds to w in format f.
func Write(w io.Writer, ds *core.Dataset, f Format) error {
	switch f {
	case FormatCSV, "":
		return WriteCSV(w, ds)
	case FormatJSON:
		return WriteJSON(w, ds)
	case FormatParquet:
		return WriteParquet(w, ds)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// WriteCSV writes the header and rows with every cell quoted.
func WriteCSV(w io.Writer, ds *core.Dataset) error {
	grid := make(core.Grid, 0, len(ds.Rows)+1)
	grid = append(grid, ds.Header)
	grid = append(grid, ds.Rows...)
	if err := core.WriteCSV(w, grid); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteJSON writes the rows as an array of objects keyed by header label.
func WriteJSON(w io.Writer, ds *core.Dataset) error {
	records := ds.Records()
	if records == nil {
		records = []map[string]string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// ColumnNames returns header labels usable as unique column names: empty
// labels become column_N (1-based) and repeats get a _2, _3 suffix.
func ColumnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if used[name] {
			for n := 2; ; n++ {
				candidate := name + "_" + strconv.Itoa(n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}
