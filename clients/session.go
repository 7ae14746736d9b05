package clients

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/latpay/types"
)

// Connect requests account access and returns the first authorized account.
func Connect(ctx context.Context, gw Gateway) (common.Address, error) {
	if gw == nil {
		return common.Address{}, types.NewError(types.ErrWalletUnavailable, "no wallet detected", nil)
	}

	accounts, err := gw.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, types.NewError(types.ErrUserRejected, "wallet authorized no accounts", nil)
	}
	return accounts[0], nil
}

// EnsureChain verifies the wallet is on chain, asking it to switch when it
// is not. Any unresolved mismatch is WRONG_NETWORK.
func EnsureChain(ctx context.Context, gw Gateway, chain types.ChainEndpoint) error {
	id, err := gw.ChainID(ctx)
	if err != nil {
		return err
	}
	if chain.Matches(id) {
		return nil
	}

	if err := gw.SwitchChain(ctx, chain); err != nil {
		if types.IsCode(err, types.ErrWrongNetwork) {
			return err
		}
		return &types.PayError{
			Code:         types.ErrWrongNetwork,
			Message:      fmt.Sprintf("wallet is on chain %s and did not switch to %s", id, chain),
			ProviderCode: ProviderCode(err),
			Err:          err,
		}
	}

	id, err = gw.ChainID(ctx)
	if err != nil {
		return err
	}
	if !chain.Matches(id) {
		return types.NewError(types.ErrWrongNetwork, fmt.Sprintf("wallet still on chain %s after switch to %s", id, chain), nil)
	}
	return nil
}
