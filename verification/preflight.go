// Package verification holds the checks a payment request must pass before
// the wallet is touched.
package verification

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
)

// QuickVerify resolves sym against cfg and checks amount, without any chain
// query. It returns the asset the attempt will pay with.
func QuickVerify(cfg *types.Config, sym types.Symbol, amount decimal.Decimal) (types.TokenDescriptor, error) {
	asset, ok := cfg.Asset(sym)
	if !ok {
		return types.TokenDescriptor{Symbol: sym}, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("asset %s is not payable", sym), nil)
	}

	switch asset.Standard {
	case types.TokenStandardNative:
	case types.TokenStandardERC20:
		if asset.Address == "" {
			return asset, types.NewError(types.ErrInvalidContract, fmt.Sprintf("asset %s has no contract address", sym), nil)
		}
	default:
		return asset, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("unsupported token standard %q", asset.Standard), nil)
	}

	if err := utils.ValidateAmount(amount); err != nil {
		return asset, types.NewError(types.ErrUnknownTransferFailure, "invalid amount", err)
	}
	return asset, nil
}
