package verification

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/latpay/types"
)

func TestQuickVerify(t *testing.T) {
	cfg := types.PlatONMainnet()

	asset, err := QuickVerify(&cfg, "usdc", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, types.SymbolUSDC, asset.Symbol)
	assert.False(t, asset.IsNative())

	asset, err = QuickVerify(&cfg, types.SymbolLAT, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, asset.IsNative())
}

func TestQuickVerify_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
		sym    types.Symbol
		amount decimal.Decimal
		code   string
	}{
		{"unknown asset", nil, "DAI", decimal.NewFromInt(1), types.ErrInvalidConfig},
		{"negative amount", nil, types.SymbolUSDT, decimal.NewFromInt(-5), types.ErrUnknownTransferFailure},
		{
			"token without contract",
			func(c *types.Config) { c.Assets[0].Address = "" },
			types.SymbolUSDT, decimal.NewFromInt(1), types.ErrInvalidContract,
		},
		{
			"unknown standard",
			func(c *types.Config) { c.Assets[0].Standard = "erc721" },
			types.SymbolUSDT, decimal.NewFromInt(1), types.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.PlatONMainnet()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			_, err := QuickVerify(&cfg, tt.sym, tt.amount)
			assert.True(t, types.IsCode(err, tt.code), "got %v", err)
		})
	}
}
