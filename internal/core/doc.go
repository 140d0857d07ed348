// Package core provides the reconciliation logic for tabular data loaded from
// spreadsheets and CSV files.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by the web handlers, the CLI, or tests without
// modification.
//
// # Architecture
//
// The package is organized around four pieces:
//
//   - Value normalization: [NormalizeCell], [NormalizeKey] and
//     [FormatDateValue] turn raw spreadsheet cells into stable display strings.
//   - Datasets: [NormalizeDataset] applies the normalizers once per load,
//     resolving a [ColumnKind] per column from the header.
//   - Joins: [LookupMerge] (VLOOKUP, full row) and [XLookupMerge] (XLOOKUP,
//     single column) partition rows into matched and unmatched sets using a
//     hash index over the lookup side.
//   - Grid linearization: [Linearize] rebuilds the logical grid of a rendered
//     table whose cells span rows and columns, and [SerializeCSV] writes it.
//
// # Dates
//
// Columns whose header contains "date" are date columns. Their cells may be
// spreadsheet serial numbers, m/d/yyyy or m/d/yy strings, or native
// time.Time values; all of them normalize to mm/dd/yyyy:
//
//	FormatDateValue(45293)       // "01/01/2024"
//	FormatDateValue("4/2/2024")  // "04/02/2024"
//	FormatDateValue("4/25/49")   // "04/25/2049"
//
// Serial numbers reproduce the spreadsheet's phantom 29 Feb 1900: any serial
// above 59 is shifted back one day before conversion.
//
// # Service
//
// [Service] keeps loaded datasets in a per-process [Store], throttles
// concurrent workbook loads with a [LoadLimiter], and records every merge in
// a [HistoryRecorder].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - VAL001-VAL004: Request validation (column indices, lookup fields)
//   - FILE001-FILE006: File errors (size, type, headers, sheets)
//   - DS001: Dataset errors
//   - EXP001-EXP003: Export errors (missing table, inconsistent spans, unknown format)
//   - LOAD001-LOAD003: Load throttling and cancellation
//   - DB001-DB003: History database errors
package core
