package clients_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/clients/clienttest"
	"github.com/vitwit/latpay/types"
)

var account = common.HexToAddress("0x2222222222222222222222222222222222222222")

func TestConnect(t *testing.T) {
	gw := clienttest.New(types.PlatONChainID, account)

	got, err := clients.Connect(context.Background(), gw)
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestConnect_NoWallet(t *testing.T) {
	_, err := clients.Connect(context.Background(), nil)
	assert.True(t, types.IsCode(err, types.ErrWalletUnavailable))
}

func TestConnect_NoAccounts(t *testing.T) {
	gw := clienttest.New(types.PlatONChainID, account)
	gw.Accounts = nil

	_, err := clients.Connect(context.Background(), gw)
	assert.True(t, types.IsCode(err, types.ErrUserRejected))
}

func TestEnsureChain(t *testing.T) {
	chain := types.PlatONMainnet().Chain

	t.Run("already on chain", func(t *testing.T) {
		gw := clienttest.New(types.PlatONChainID, account)
		require.NoError(t, clients.EnsureChain(context.Background(), gw, chain))
		assert.False(t, gw.Called(clients.MethodSwitchChain))
	})

	t.Run("switch accepted", func(t *testing.T) {
		gw := clienttest.New(1, account)
		require.NoError(t, clients.EnsureChain(context.Background(), gw, chain))
		assert.True(t, gw.Called(clients.MethodSwitchChain))
	})

	t.Run("switch rejected", func(t *testing.T) {
		gw := clienttest.New(1, account)
		gw.SwitchErr = &types.PayError{Code: types.ErrUserRejected, Message: "rejected", ProviderCode: clients.CodeUserRejected}

		err := clients.EnsureChain(context.Background(), gw, chain)
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrWrongNetwork))
		assert.Equal(t, clients.CodeUserRejected, clients.ProviderCode(err))
	})

	t.Run("chain read fails", func(t *testing.T) {
		gw := clienttest.New(1, account)
		gw.ChainErr = types.NewProviderError(clients.MethodChainID, 0, errors.New("offline"))

		err := clients.EnsureChain(context.Background(), gw, chain)
		assert.True(t, types.IsCode(err, types.ErrProviderCall))
	})
}

func TestERC20_InvalidContract(t *testing.T) {
	gw := clienttest.New(types.PlatONChainID, account)
	erc := clients.NewERC20(gw, common.HexToAddress("0x3333333333333333333333333333333333333333"))

	_, err := erc.Decimals(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidContract))
	assert.False(t, gw.Called("decimals"))
}

func TestERC20_Reads(t *testing.T) {
	gw := clienttest.New(types.PlatONChainID, account)
	addr := common.HexToAddress(types.PlatONUSDCContract)
	gw.AddToken(addr, "USDC", 6)
	gw.SetBalance(addr, account, big.NewInt(1_500_000))

	erc := clients.NewERC20(gw, addr)
	ctx := context.Background()

	sym, err := erc.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)

	d, err := erc.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)

	b, err := erc.BalanceOf(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), b.Int64())
}

func TestTransferEncoding(t *testing.T) {
	to := common.HexToAddress("0x37F02c567869F5729594Aa6261C9c3459D077e04")
	data, err := clients.EncodeTransfer(to, big.NewInt(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, "a9059cbb", common.Bytes2Hex(data[:4]))

	gotTo, amount, err := clients.DecodeTransfer(data)
	require.NoError(t, err)
	assert.Equal(t, to, gotTo)
	assert.Equal(t, int64(100_000_000), amount.Int64())

	_, err = clients.EncodeTransfer(to, big.NewInt(-1))
	assert.Error(t, err)
}
