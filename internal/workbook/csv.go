package workbook

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// CSV is a parsed CSV file exposed as a one-sheet workbook.
type CSV struct {
	sheet  string
	header []any
	rows   [][]any
}

// ReadCSV parses r fully. Rows may have differing lengths; quotes are
// parsed leniently because exported spreadsheets often contain stray ones.
func ReadCSV(r io.Reader, sheet string) (*CSV, error) {
	reader := csv.NewReader(core.NewTextReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	out := &CSV{sheet: sheet}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		cells := make([]any, len(record))
		for i, v := range record {
			cells[i] = v
		}
		if out.header == nil {
			out.header = cells
			continue
		}
		out.rows = append(out.rows, cells)
	}
	return out, nil
}

func (c *CSV) SheetNames() []string { return []string{c.sheet} }

func (c *CSV) ReadSheet(name string) ([]any, [][]any, error) {
	if name != c.sheet {
		return nil, nil, fmt.Errorf("csv has no sheet %q", name)
	}
	return c.header, c.rows, nil
}

func (c *CSV) Close() error { return nil }
