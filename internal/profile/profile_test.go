package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"42", 42, true},
		{"1,234.50", 1234.5, true},
		{"$99", 99, true},
		{"(12.50)", -12.5, true},
		{"-$3", -3, true},
		{".5", 0.5, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"12 units", 0, false},
		{"Acme", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestDataset(t *testing.T) {
	ds := &core.Dataset{
		Header: []string{"Invoice", "Amount", "Due Date", "Note"},
		Kinds:  []core.ColumnKind{core.KindText, core.KindText, core.KindDate, core.KindText},
		Rows: [][]string{
			{"1", "10", "01/02/2024", "ok"},
			{"2", "1,000", "", "12"},
			{"3", "", "01/03/2024", "late"},
			{"4", "(5)", "01/03/2024", ""},
		},
	}

	profiles, err := Dataset(ds)
	require.NoError(t, err)
	require.Len(t, profiles, 4)

	amount := profiles[1]
	assert.Equal(t, "Amount", amount.Column)
	assert.Equal(t, 1, amount.Blanks)
	assert.Equal(t, 4, amount.Distinct)
	require.NotNil(t, amount.Numeric)
	assert.InDelta(t, 1005, amount.Numeric.Sum, 1e-9)
	assert.InDelta(t, -5, amount.Numeric.Min, 1e-9)
	assert.InDelta(t, 1000, amount.Numeric.Max, 1e-9)
	assert.InDelta(t, 10, amount.Numeric.Median, 1e-9)

	assert.Equal(t, "date", profiles[2].Kind)
	assert.Nil(t, profiles[2].Numeric, "date columns are not amounts")
	assert.Nil(t, profiles[3].Numeric, "mixed text is not an amount column")
	assert.NotNil(t, profiles[0].Numeric)
}

func TestColumn_AllBlank(t *testing.T) {
	ds := &core.Dataset{
		Header: []string{"Empty"},
		Kinds:  []core.ColumnKind{core.KindText},
		Rows:   [][]string{{""}, {""}},
	}
	p, err := Column(ds, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Blanks)
	assert.Equal(t, 1, p.Distinct)
	assert.Nil(t, p.Numeric)
}

func TestColumn_OutOfRange(t *testing.T) {
	ds := &core.Dataset{Header: []string{"A"}, Kinds: []core.ColumnKind{core.KindText}}
	_, err := Column(ds, 3)
	assert.ErrorIs(t, err, core.ErrInvalidColumn)
}
