package workbook

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// buildWorkbook writes a two-sheet workbook and returns its bytes.
func buildWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Invoices"))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	rows := [][]any{
		{"Invoice", "Customer", "Invoice Date", "Amount"},
		{"007", "Acme", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 12.5},
		{"8", "Globex", time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), 3},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Invoices", cell, &row))
	}
	require.NoError(t, f.SetCellValue("Notes", "A1", "Text"))

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestOpen_Excel(t *testing.T) {
	src, err := Open("invoices.xlsx", bytes.NewReader(buildWorkbook(t)))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"Invoices", "Notes"}, src.SheetNames())

	header, rows, err := src.ReadSheet("Invoices")
	require.NoError(t, err)
	assert.Equal(t, []any{"Invoice", "Customer", "Invoice Date", "Amount"}, header)
	require.Len(t, rows, 2)

	// Text keys keep leading zeros; whole serials stay digit strings.
	assert.Equal(t, "007", rows[0][0])
	assert.Equal(t, "45292", rows[0][2])
	assert.Equal(t, 12.5, rows[0][3])
	// A serial with a time of day arrives as a number.
	assert.Equal(t, 45292.75, rows[1][2])
}

func TestOpen_ExcelNormalizes(t *testing.T) {
	src, err := Open("invoices.xlsx", bytes.NewReader(buildWorkbook(t)))
	require.NoError(t, err)
	defer src.Close()

	header, rows, err := src.ReadSheet("Invoices")
	require.NoError(t, err)

	ds, err := core.NormalizeDataset(header, rows, core.NormalizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.KindDate, ds.Kinds[2])
	// Stored 2024-01-01 is serial 45292, which the one-day shift renders as
	// the previous day.
	assert.Equal(t, "12/31/2023", ds.Rows[0][2])
	assert.Equal(t, "12/31/2023", ds.Rows[1][2])
	assert.Equal(t, "3", ds.Rows[1][3])
}

func TestOpen_CSV(t *testing.T) {
	input := "\xEF\xBB\xBFID,Name,Ship Date\n007,\"Acme, Inc\",45293\n8,Globex\n"

	src, err := Open("Customers.CSV", strings.NewReader(input))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"Customers"}, src.SheetNames())

	header, rows, err := src.ReadSheet("Customers")
	require.NoError(t, err)
	assert.Equal(t, []any{"ID", "Name", "Ship Date"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"007", "Acme, Inc", "45293"}, rows[0])
	assert.Equal(t, []any{"8", "Globex"}, rows[1])

	_, _, err = src.ReadSheet("Other")
	assert.Error(t, err)
}

func TestOpen_CSVLenientQuotes(t *testing.T) {
	src, err := Open("a.csv", strings.NewReader("A,B\nsay \"hi\",x\n"))
	require.NoError(t, err)

	_, rows, err := src.ReadSheet("a")
	require.NoError(t, err)
	assert.Equal(t, []any{`say "hi"`, "x"}, rows[0])
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open("legacy.xls", strings.NewReader(""))
	assert.ErrorIs(t, err, core.ErrUnsupportedFile)
}

func TestOpen_CorruptWorkbook(t *testing.T) {
	_, err := Open("broken.xlsx", strings.NewReader("not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open workbook")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("K,V\n1,one\n"), 0o600))

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"data"}, src.SheetNames())

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestExcel_RenderedTable(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	values := map[string]string{
		"A1": "Region", "B1": "Q1", "D1": "Total",
		"B2": "Jan", "C2": "Feb",
		"A3": "East", "B3": "1", "C3": "2", "D3": "3",
		"B4": "4", "C4": "5", "D4": "9",
	}
	for axis, v := range values {
		require.NoError(t, f.SetCellValue(sheet, axis, v))
	}
	require.NoError(t, f.MergeCell(sheet, "A1", "A2")) // Region spans two header rows
	require.NoError(t, f.MergeCell(sheet, "B1", "C1")) // Q1 spans two months
	require.NoError(t, f.MergeCell(sheet, "D1", "D2"))
	require.NoError(t, f.MergeCell(sheet, "A3", "A4")) // East spans two rows

	table, err := NewExcel(f).RenderedTable(sheet)
	require.NoError(t, err)
	require.NoError(t, table.Validate())

	got := core.Linearize(*table)
	want := core.Grid{
		{"Region", "Q1", "", "Total"},
		{"", "Jan", "Feb", ""},
		{"East", "1", "2", "3"},
		{"", "4", "5", "9"},
	}
	assert.Equal(t, want, got)
}
