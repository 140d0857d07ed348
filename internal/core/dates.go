package core

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	serialPattern   = regexp.MustCompile(`^\d+$`)
	fourYearPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	twoYearPattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)
)

// TwoDigitYearPivot splits two-digit years: below it is 20yy, otherwise 19yy.
const TwoDigitYearPivot = 50

// serialUnixOffset is the serial of 1970-01-01 in the spreadsheet calendar.
const serialUnixOffset = 25569

// FormatDateValue renders a date-column cell as mm/dd/yyyy.
//
// The first matching rule wins:
//   - a Go number, or a string of digits, is a spreadsheet serial
//   - m/d/yyyy is zero-padded
//   - m/d/yy expands yy below 50 to 20yy, otherwise 19yy
//   - a time.Time uses the month, day and year of its own location
//
// Anything else comes back unchanged (nil as ""). Strings have non-breaking
// spaces removed and are trimmed before matching.
func FormatDateValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return formatDateString(x)
	case time.Time:
		return formatDate(x)
	case *time.Time:
		if x == nil {
			return ""
		}
		return formatDate(*x)
	}

	if f, ok := toFloat(v); ok {
		if s, ok := formatSerial(f); ok {
			return s
		}
	}
	return CellString(v)
}

func formatDateString(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, nbsp, ""))

	if serialPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if out, ok := formatSerial(f); ok {
				return out
			}
		}
	}
	if m := fourYearPattern.FindStringSubmatch(s); m != nil {
		return pad2(m[1]) + "/" + pad2(m[2]) + "/" + m[3]
	}
	if m := twoYearPattern.FindStringSubmatch(s); m != nil {
		yy, _ := strconv.Atoi(m[3])
		year := 1900 + yy
		if yy < TwoDigitYearPivot {
			year = 2000 + yy
		}
		return fmt.Sprintf("%s/%s/%d", pad2(m[1]), pad2(m[2]), year)
	}
	return raw
}

// SerialToTime converts a spreadsheet serial to a UTC time. Serials above 59
// are shifted back one day to skip the calendar's phantom 29 Feb 1900.
// Fractions carry the time of day at millisecond precision, truncated.
func SerialToTime(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	if serial > 59 {
		serial--
	}
	ms := (serial - serialUnixOffset) * 86400e3
	// Keep the result inside four-digit years.
	if ms < minFormattableMilli || ms > maxFormattableMilli {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

var (
	minFormattableMilli = float64(time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxFormattableMilli = float64(time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli())
)

func formatSerial(f float64) (string, bool) {
	t, ok := SerialToTime(f)
	if !ok {
		return "", false
	}
	return formatDate(t), true
}

func formatDate(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%04d", int(t.Month()), t.Day(), t.Year())
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// toFloat reports whether v is a Go numeric kind and returns it as float64.
func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
