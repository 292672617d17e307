package utils

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	cases := map[string]int64{
		"50":     5000,
		"50.25":  5025,
		"0.01":   1,
		"1000.5": 100050,
	}
	for in, want := range cases {
		got, err := ToMinor(decimal.RequireFromString(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestToMinorRejectsSubKobo(t *testing.T) {
	_, err := ToMinor(decimal.RequireFromString("10.005"))
	assert.ErrorIs(t, err, ErrAmountPrecision)
}

func TestToMinorRejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"184467440737095516.17", "92233720368547758.08", "-92233720368547758.09"} {
		_, err := ToMinor(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, ErrAmountRange, in)
	}
	got, err := ToMinor(decimal.RequireFromString("92233720368547758.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "60.00", FormatMinor(6000))
	assert.Equal(t, "0.05", FormatMinor(5))
	assert.Equal(t, "-1.50", FormatMinor(-150))
}
