// Package profile summarizes the columns of a loaded dataset: blank and
// distinct counts for every column, and totals for columns whose non-blank
// cells are all amounts. Comparing the totals of two files is the usual first
// check before a lookup merge.
package profile

import (
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// NumericStats describes an amount column.
type NumericStats struct {
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
}

// ColumnProfile describes one column.
type ColumnProfile struct {
	Index    int           `json:"index"`
	Column   string        `json:"column"`
	Kind     string        `json:"kind"`
	Blanks   int           `json:"blanks"`
	Distinct int           `json:"distinct"`
	Numeric  *NumericStats `json:"numeric,omitempty"`
}

// Dataset profiles every column of ds.
func Dataset(ds *core.Dataset) ([]ColumnProfile, error) {
	profiles := make([]ColumnProfile, ds.Width())
	for i := range profiles {
		p, err := Column(ds, i)
		if err != nil {
			return nil, err
		}
		profiles[i] = p
	}
	return profiles, nil
}

// Column profiles column col of ds. Date columns never get numeric stats.
func Column(ds *core.Dataset, col int) (ColumnProfile, error) {
	values, err := ds.DistinctValues(col)
	if err != nil {
		return ColumnProfile{}, err
	}

	p := ColumnProfile{
		Index:    col,
		Column:   ds.Header[col],
		Kind:     ds.Kinds[col].String(),
		Distinct: len(values),
	}

	var amounts []float64
	numeric := ds.Kinds[col] != core.KindDate
	for _, row := range ds.Rows {
		cell := row[col]
		if cell == "" {
			p.Blanks++
			continue
		}
		if !numeric {
			continue
		}
		f, ok := ParseAmount(cell)
		if !ok {
			numeric = false
			continue
		}
		amounts = append(amounts, f)
	}

	if numeric && len(amounts) > 0 {
		s, err := summarize(amounts)
		if err != nil {
			return ColumnProfile{}, err
		}
		p.Numeric = s
	}
	return p, nil
}

func summarize(data []float64) (*NumericStats, error) {
	var (
		s   NumericStats
		err error
	)
	if s.Sum, err = stats.Sum(data); err != nil {
		return nil, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return nil, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return nil, err
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return nil, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return nil, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseAmount reads a number as spreadsheets display it: thousands
// separators, a leading currency sign and accounting parentheses for
// negatives are accepted.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	s = strings.TrimLeft(s, "$€£¥")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || !strings.ContainsAny(s[:1], "0123456789.") {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}
