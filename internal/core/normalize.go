package core

// normalize.go turns raw loader cells into the display strings every other
// part of the package compares and exports.
//
// Raw cells come from two places: spreadsheet readers (strings, numbers,
// booleans, native times) and CSV readers (always strings). Both funnel through
// CellString before any text normalization, so a key loaded from a workbook
// and the same key loaded from a CSV compare equal.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const nbsp = "\u00a0"

// NormalizeCell replaces non-breaking spaces with plain spaces and trims
// surrounding whitespace. The empty string is the blank sentinel.
func NormalizeCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, nbsp, " "))
}

// NormalizeKey normalizes a join key. A key made only of ASCII digits has its
// leading zeros stripped so "00123" and "123" match; an all-zero key becomes
// "0". Any other key compares by its normalized text, case-sensitively.
func NormalizeKey(s string) string {
	s = NormalizeCell(s)
	if s == "" || !isASCIIDigits(s) {
		return s
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// NormalizeValue normalizes a raw cell of the given column kind.
func NormalizeValue(kind ColumnKind, v any) string {
	if kind == KindDate {
		return NormalizeCell(FormatDateValue(v))
	}
	return NormalizeCell(CellString(v))
}

// CellString renders a raw cell as text. Floats use the shortest
// representation that round-trips, so 42.0 renders as "42". Native times
// render as mm/dd/yyyy.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case time.Time:
		return formatDate(x)
	case *time.Time:
		if x == nil {
			return ""
		}
		return formatDate(*x)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// ResolveColumnKinds decides the kind of every column from its header label.
// A label containing "date" in any case is a date column.
func ResolveColumnKinds(header []string) []ColumnKind {
	kinds := make([]ColumnKind, len(header))
	for i, h := range header {
		if strings.Contains(strings.ToLower(h), "date") {
			kinds[i] = KindDate
		}
	}
	return kinds
}
