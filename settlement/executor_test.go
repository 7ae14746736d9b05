package settlement_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitwit/latpay/address"
	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/clients/clienttest"
	"github.com/vitwit/latpay/logger"
	"github.com/vitwit/latpay/outcome"
	"github.com/vitwit/latpay/settlement"
	"github.com/vitwit/latpay/types"
)

var (
	account   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient = common.HexToAddress("0x37F02c567869F5729594Aa6261C9c3459D077e04")
	usdt      = common.HexToAddress(types.PlatONUSDTContract)
)

type fixture struct {
	cfg      types.Config
	gw       *clienttest.Gateway
	notes    *outcome.MemoryNotifier
	exec     *settlement.Executor
	successN atomic.Int32
}

func newFixture(t *testing.T, usdtBalance int64) *fixture {
	t.Helper()

	f := &fixture{
		cfg:   types.PlatONMainnet(),
		gw:    clienttest.New(types.PlatONChainID, account),
		notes: &outcome.MemoryNotifier{},
	}
	f.gw.AddToken(usdt, "USDT", 6)
	f.gw.SetBalance(usdt, account, big.NewInt(usdtBalance))
	f.build(t)
	return f
}

func (f *fixture) build(t *testing.T) {
	t.Helper()
	codec, err := address.NewCodec(f.cfg.AddressPrefix)
	require.NoError(t, err)
	f.exec = settlement.NewExecutor(&f.cfg, f.gw, codec, settlement.Options{Notifier: f.notes})
}

func (f *fixture) request(sym types.Symbol, amount string) settlement.Request {
	return settlement.Request{
		Asset:     sym,
		Amount:    decimal.RequireFromString(amount),
		OnSuccess: func() { f.successN.Add(1) },
	}
}

func usdtUnits(n int64) int64 { return n * 1_000_000 }

func TestSubmit_TokenSuccess(t *testing.T) {
	f := newFixture(t, usdtUnits(500))

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	require.NoError(t, res.Err)
	assert.True(t, res.Outcome.Success())
	assert.Equal(t, int32(1), f.successN.Load())

	a := res.Attempt
	require.NotNil(t, a)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, types.StateSettled, a.State)
	assert.True(t, a.Success)
	assert.Equal(t, uint8(6), a.Decimals)
	assert.Equal(t, big.NewInt(usdtUnits(100)), a.Value)
	assert.Equal(t, recipient, a.Recipient)
	assert.Equal(t, account, a.Account)
	assert.NotEqual(t, common.Hash{}, a.TxHash)
	assert.Equal(t, types.StateSettled, f.exec.State())

	sent := f.gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, usdt, sent[0].To)
	assert.Equal(t, 0, sent[0].Value.Sign())
	to, value, err := clients.DecodeTransfer(sent[0].Data)
	require.NoError(t, err)
	assert.Equal(t, recipient, to)
	assert.Equal(t, big.NewInt(usdtUnits(100)), value)

	levels := []outcome.Level{}
	for _, n := range f.notes.All() {
		levels = append(levels, n.Level)
	}
	assert.Equal(t, []outcome.Level{outcome.LevelLoading, outcome.LevelSuccess}, levels)
}

func TestSubmit_NativeSuccess(t *testing.T) {
	f := newFixture(t, 0)
	f.gw.Native[account] = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))

	res := f.exec.Submit(context.Background(), f.request(types.SymbolLAT, "2.5"))

	require.NoError(t, res.Err)
	assert.Equal(t, int32(1), f.successN.Load())

	sent := f.gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, recipient, sent[0].To)
	assert.Empty(t, sent[0].Data)
	assert.Equal(t, "2500000000000000000", sent[0].Value.String())
	assert.False(t, f.gw.Called("transfer"))
}

func TestSubmit_RoundsToSmallestUnit(t *testing.T) {
	f := newFixture(t, usdtUnits(500))

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "99.9999995"))

	require.NoError(t, res.Err)
	assert.Equal(t, big.NewInt(usdtUnits(100)), res.Attempt.Value)
}

func TestSubmit_InsufficientFunds(t *testing.T) {
	f := newFixture(t, usdtUnits(50))

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.True(t, types.IsCode(res.Err, types.ErrInsufficientFunds))
	assert.Equal(t, outcome.CategoryInsufficientFunds, res.Outcome.Category)
	assert.Equal(t, types.StateSettled, res.Attempt.State)
	assert.False(t, res.Attempt.Success)
	assert.False(t, f.gw.Called(clients.MethodSendTransaction))
	assert.Empty(t, f.gw.Sent())
	assert.Equal(t, int32(0), f.successN.Load())
}

func TestSubmit_WrongNetwork(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.gw.Chain = big.NewInt(1)
	f.gw.SwitchErr = types.NewError(types.ErrUserRejected, "switch rejected", nil)

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.True(t, types.IsCode(res.Err, types.ErrWrongNetwork))
	assert.Equal(t, types.StateIdle, res.Attempt.State)
	assert.Equal(t, types.StateIdle, f.exec.State())

	for _, m := range []string{clients.MethodGetCode, "decimals", "balanceOf", clients.MethodGetBalance, clients.MethodSendTransaction} {
		assert.False(t, f.gw.Called(m), m)
	}
	assert.Equal(t, int32(0), f.successN.Load())
}

func TestSubmit_ConnectRejected(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.gw.AccountsErr = &types.PayError{Code: types.ErrUserRejected, Message: "request rejected in wallet", ProviderCode: 4001}

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.Equal(t, types.StateIdle, res.Attempt.State)
	assert.Equal(t, outcome.CategoryUserRejected, res.Outcome.Category)
	assert.Equal(t, "Transaction cancelled by user.", res.Outcome.Message)
	assert.False(t, f.gw.Called(clients.MethodChainID))
}

func TestSubmit_ReceiptFailure(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.gw.ReceiptStatus = 0

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.True(t, types.IsCode(res.Err, types.ErrUnknownTransferFailure))
	assert.Equal(t, outcome.CategoryFailed, res.Outcome.Category)
	assert.Equal(t, types.StateSettled, res.Attempt.State)
	assert.Len(t, f.gw.Sent(), 1)
	assert.Equal(t, int32(0), f.successN.Load())
}

func TestSubmit_ReceiptWaitFails(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.gw.ReceiptErr = types.NewProviderError(clients.MethodGetReceipt, -32000, errors.New("connection reset"))

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.False(t, res.Attempt.Success)
	assert.Equal(t, "Payment failed, please retry.", res.Outcome.Message)
	assert.Equal(t, int32(0), f.successN.Load())
}

func TestSubmit_SendErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category outcome.Category
	}{
		{
			name:     "rejected in wallet",
			err:      &types.PayError{Code: types.ErrUserRejected, Message: "request rejected in wallet", ProviderCode: 4001},
			category: outcome.CategoryUserRejected,
		},
		{
			name:     "revert reason",
			err:      types.NewProviderError(clients.MethodSendTransaction, -32603, errors.New("execution reverted: ERC20: transfer amount exceeds balance")),
			category: outcome.CategoryInsufficientFunds,
		},
		{
			name:     "unmapped",
			err:      types.NewProviderError(clients.MethodSendTransaction, -32603, errors.New("nonce too low")),
			category: outcome.CategoryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, usdtUnits(500))
			f.gw.SendErr = tt.err

			res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

			assert.Equal(t, tt.category, res.Outcome.Category)
			assert.Equal(t, types.StateSettled, res.Attempt.State)
			assert.False(t, f.gw.Called(clients.MethodGetReceipt))
			assert.Equal(t, int32(0), f.successN.Load())
		})
	}
}

func TestSubmit_BadRecipient(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.cfg.Recipient = "lat1xlczc4ncd86h99v54f3xrjwrgkwswlsyalq7cm"
	f.build(t)

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.True(t, types.IsCode(res.Err, types.ErrAddressFormat))
	assert.Equal(t, types.StateSettled, res.Attempt.State)
	assert.False(t, f.gw.Called(clients.MethodSendTransaction))
}

func TestSubmit_InvalidContract(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	delete(f.gw.Tokens, usdt)

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))

	assert.True(t, types.IsCode(res.Err, types.ErrInvalidContract))
	assert.Equal(t, "Invalid token contract address.", res.Outcome.Message)
	assert.False(t, f.gw.Called("decimals"))
	assert.Empty(t, f.gw.Sent())
}

func TestSubmit_UnknownAsset(t *testing.T) {
	f := newFixture(t, usdtUnits(500))

	res := f.exec.Submit(context.Background(), f.request("DAI", "1"))

	assert.True(t, types.IsCode(res.Err, types.ErrInvalidConfig))
	assert.Equal(t, types.StateIdle, res.Attempt.State)
	assert.Empty(t, f.gw.Calls())
}

func TestSubmit_RejectsWhileAwaitingConfirmation(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.gw.ReceiptGate = make(chan struct{})

	first := make(chan settlement.Result, 1)
	go func() {
		first <- f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))
	}()

	select {
	case <-f.gw.SentSignal:
	case <-time.After(5 * time.Second):
		t.Fatal("first attempt never submitted")
	}
	assert.True(t, f.exec.Busy())

	second := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))
	assert.Nil(t, second.Attempt)
	assert.True(t, types.IsCode(second.Err, types.ErrBusy))
	assert.Equal(t, outcome.CategoryBusy, second.Outcome.Category)

	_, err := f.exec.Revalidate(context.Background())
	assert.True(t, types.IsCode(err, types.ErrBusy))

	close(f.gw.ReceiptGate)
	res := <-first

	require.NoError(t, res.Err)
	assert.Len(t, f.gw.Sent(), 1)
	assert.Equal(t, int32(1), f.successN.Load())
	assert.False(t, f.exec.Busy())
}

func TestSubmit_RetryAfterFailure(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	f.gw.SendErr = types.NewError(types.ErrUserRejected, "rejected", nil)

	res := f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))
	require.Error(t, res.Err)

	f.gw.SendErr = nil
	res = f.exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))
	require.NoError(t, res.Err)
	assert.Equal(t, int32(1), f.successN.Load())
	assert.Same(t, res.Attempt, f.exec.Last())
}

func TestRevalidate(t *testing.T) {
	f := newFixture(t, 0)
	f.gw.Chain = big.NewInt(1)

	got, err := f.exec.Revalidate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, account, got)
	assert.True(t, f.gw.Called(clients.MethodSwitchChain))
	assert.Equal(t, types.StateIdle, f.exec.State())
}

func TestSubmit_LogsTransitions(t *testing.T) {
	f := newFixture(t, usdtUnits(500))
	core, logs := observer.New(zapcore.DebugLevel)
	codec, err := address.NewCodec(f.cfg.AddressPrefix)
	require.NoError(t, err)
	exec := settlement.NewExecutor(&f.cfg, f.gw, codec, settlement.Options{Logger: logger.FromZap(zap.New(core))})

	res := exec.Submit(context.Background(), f.request(types.SymbolUSDT, "100"))
	require.NoError(t, res.Err)

	var states []any
	for _, e := range logs.FilterMessage("state transition").All() {
		ctx := e.ContextMap()
		assert.Equal(t, res.Attempt.ID, ctx["attempt_id"])
		states = append(states, ctx["state"])
	}
	assert.Equal(t, []any{"connecting", "validating", "converting", "submitting", "awaiting_confirmation", "settled"}, states)
}
