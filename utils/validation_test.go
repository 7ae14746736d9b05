package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"100", 6, "100000000"},
		{"0.1", 6, "100000"},
		{"19.99", 18, "19990000000000000000"},
		{"0.0000005", 6, "1"},
		{"0.0000004", 6, "0"},
		{"1.2345675", 6, "1234568"},
		{"42", 0, "42"},
		{"0", 6, "0"},
	}

	for _, tc := range cases {
		got, err := ToSmallestUnit(decimal.RequireFromString(tc.amount), tc.decimals)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String(), "%s @ %d", tc.amount, tc.decimals)
	}
}

func TestToSmallestUnit_Idempotent(t *testing.T) {
	amount := decimal.RequireFromString("12.345678901")
	for d := uint8(0); d <= 18; d++ {
		a, err := ToSmallestUnit(amount, d)
		require.NoError(t, err)
		b, err := ToSmallestUnit(amount, d)
		require.NoError(t, err)
		assert.Equal(t, 0, a.Cmp(b))
		assert.True(t, a.Sign() >= 0)
	}
}

func TestToSmallestUnit_Negative(t *testing.T) {
	_, err := ToSmallestUnit(decimal.NewFromInt(-1), 6)
	assert.Error(t, err)
}

func TestFromSmallestUnit(t *testing.T) {
	assert.True(t, decimal.RequireFromString("50").Equal(FromSmallestUnit(big.NewInt(50_000_000), 6)))
	assert.True(t, decimal.Zero.Equal(FromSmallestUnit(nil, 6)))
	assert.True(t, decimal.Zero.Equal(FromSmallestUnit(big.NewInt(-5), 6)))
	assert.Equal(t, "1.23", FormatAmount(big.NewInt(1_234_567), 6))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("9.90")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.9").Equal(d))

	_, err = ParseAmount("")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
	_, err = ParseAmount("-3")
	assert.Error(t, err)
}
