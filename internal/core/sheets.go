package core

import (
	"regexp"
	"strings"
)

// WorkbookSource is an opened workbook or CSV file. CSV sources expose a
// single sheet.
type WorkbookSource interface {
	SheetNames() []string
	// ReadSheet returns the first row as header and the rest as raw rows.
	ReadSheet(name string) (header []any, rows [][]any, err error)
}

var (
	zeroWidth  = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}]`)
	whitespace = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}]+`)
)

// NormalizeSheetName folds a sheet name for comparison: zero-width characters
// removed, whitespace runs collapsed, trimmed and lower-cased.
func NormalizeSheetName(name string) string {
	name = zeroWidth.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveSheet picks the sheet matching wanted after normalization. An empty
// or unknown name falls back to the first sheet; fellBack reports that.
func ResolveSheet(names []string, wanted string) (name string, fellBack bool, err error) {
	if len(names) == 0 {
		return "", false, ErrNoSheets
	}
	want := NormalizeSheetName(wanted)
	for _, n := range names {
		if NormalizeSheetName(n) == want {
			return n, false, nil
		}
	}
	return names[0], true, nil
}
