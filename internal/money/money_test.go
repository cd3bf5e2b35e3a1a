package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1234,56", "1234.56"},
		{"1234.56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"R$ 1.234,56", "1234.56"},
		{"$1,234.56", "1234.56"},
		{"  42 ", "42"},
		{"-10,5", "-10.5"},
		{"1.234.567", "1234567"},
		{"0,01", "0.01"},
		{",5", "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "12,345", "1.2.3,4", "1,2345.6", "10.001", "R$"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestParseRate(t *testing.T) {
	got, err := ParseRate("0,033")
	require.NoError(t, err)
	assert.Equal(t, "0.033", got.String())

	_, err = ParseRate("0.1234567")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	d := decimal.RequireFromString("1234567.891")
	assert.Equal(t, "1,234,567.89", Format(d))
	assert.Equal(t, "R$ 1.234.567,89", FormatBRL(d))
	assert.Equal(t, "0.00", Format(decimal.Zero))
	assert.Equal(t, "-12.50", Format(decimal.RequireFromString("-12.5")))
	assert.Equal(t, "R$ 999,00", FormatBRL(decimal.NewFromInt(999)))
}

func TestFormatParse_RoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "12.30", "1000.00", "98765.43"} {
		d := decimal.RequireFromString(s)

		back, err := Parse(Format(d))
		require.NoError(t, err)
		assert.True(t, back.Equal(d))

		back, err = Parse(FormatBRL(d))
		require.NoError(t, err)
		assert.True(t, back.Equal(d))
	}
}

func TestRound_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", Round(decimal.RequireFromString("0.125")).String())
	assert.Equal(t, "-0.13", Round(decimal.RequireFromString("-0.125")).String())
	assert.Equal(t, "0.12", Round(decimal.RequireFromString("0.1249")).String())
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(decimal.NewFromInt(200), decimal.NewFromInt(2)).Equal(decimal.NewFromInt(4)))
}
