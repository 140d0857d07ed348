// Package workbook opens .xlsx and .csv files as sheet sources for the
// reconciliation service.
//
// Spreadsheet cells are read with their raw values so that date cells arrive
// as serial numbers and the date normalizer sees the same input for every
// display format. CSV files are decoded through the BOM-aware text reader
// and exposed as a single sheet named after the file.
package workbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// Source is an opened workbook. Close releases any temporary files.
type Source interface {
	core.WorkbookSource
	Close() error
}

// Open reads fileName's content from r, choosing the parser by extension.
func Open(fileName string, r io.Reader) (Source, error) {
	if err := core.CheckFileType(fileName); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return ReadCSV(r, sheetNameFor(fileName))
	}
	return OpenExcel(r)
}

// OpenFile opens a workbook on disk.
func OpenFile(path string) (Source, error) {
	if err := core.CheckFileType(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Open(filepath.Base(path), f)
}

// sheetNameFor names the single sheet of a CSV file.
func sheetNameFor(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
