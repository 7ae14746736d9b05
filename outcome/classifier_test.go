package outcome

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitwit/latpay/types"
)

type rpcErr struct {
	code int
	msg  string
	data any
}

func (e *rpcErr) Error() string { return e.msg }
func (e *rpcErr) ErrorCode() int { return e.code }
func (e *rpcErr) ErrorData() any { return e.data }

func TestClassify(t *testing.T) {
	c := NewClassifier("PlatON")

	tests := []struct {
		name     string
		err      error
		category Category
		code     string
	}{
		{"nil is success", nil, CategorySuccess, ""},
		{"wallet unavailable", types.NewError(types.ErrWalletUnavailable, "none", nil), CategoryWalletUnavailable, types.ErrWalletUnavailable},
		{"user rejected code", types.NewError(types.ErrUserRejected, "no", nil), CategoryUserRejected, types.ErrUserRejected},
		{"wrong network", types.NewError(types.ErrWrongNetwork, "chain 1", nil), CategoryWrongNetwork, types.ErrWrongNetwork},
		{"invalid contract", types.NewError(types.ErrInvalidContract, "no code", nil), CategoryInvalidContract, types.ErrInvalidContract},
		{"address format", types.NewError(types.ErrAddressFormat, "bad", nil), CategoryAddressFormat, types.ErrAddressFormat},
		{"insufficient", types.NewError(types.ErrInsufficientFunds, "short", nil), CategoryInsufficientFunds, types.ErrInsufficientFunds},
		{"busy", types.NewError(types.ErrBusy, "in flight", nil), CategoryBusy, types.ErrBusy},
		{
			"provider 4001",
			types.NewProviderError("eth_sendTransaction", 4001, &rpcErr{code: 4001, msg: "denied"}),
			CategoryUserRejected, types.ErrUserRejected,
		},
		{
			"raw action rejected",
			errors.New("ACTION_REJECTED: user rejected transaction"),
			CategoryUserRejected, types.ErrUserRejected,
		},
		{
			"revert reason",
			types.NewProviderError("eth_sendTransaction", -32603, &rpcErr{code: -32603, msg: "execution reverted: ERC20: transfer amount exceeds balance"}),
			CategoryInsufficientFunds, types.ErrInsufficientFunds,
		},
		{
			"reason only in data",
			fmt.Errorf("send: %w", &rpcErr{code: -32000, msg: "execution reverted", data: "Insufficient funds for gas"}),
			CategoryInsufficientFunds, types.ErrInsufficientFunds,
		},
		{
			"unmapped provider failure",
			types.NewProviderError("eth_sendTransaction", -32603, &rpcErr{code: -32603, msg: "nonce too low"}),
			CategoryFailed, types.ErrProviderCall,
		},
		{"plain error", errors.New("socket closed"), CategoryFailed, types.ErrUnknownTransferFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := c.Classify(tt.err, types.SymbolUSDT)
			assert.Equal(t, tt.category, o.Category)
			assert.Equal(t, tt.code, o.Code)
			assert.NotEmpty(t, o.Message)
		})
	}
}

func TestClassify_DoesNotLeakRawText(t *testing.T) {
	c := NewClassifier("PlatON")

	o := c.Classify(errors.New("internal: rpc node 10.0.0.3 refused"), types.SymbolLAT)
	assert.Equal(t, "Payment failed, please retry.", o.Message)
	assert.NotContains(t, o.Message, "10.0.0.3")
}

func TestClassify_ProviderCodeKept(t *testing.T) {
	c := NewClassifier("PlatON")

	o := c.Classify(&types.PayError{Code: types.ErrWrongNetwork, ProviderCode: 4902}, types.SymbolUSDC)
	assert.Equal(t, 4902, o.ProviderCode)
	assert.Contains(t, o.Message, "PlatON")
}

func TestMessages(t *testing.T) {
	c := NewClassifier("PlatON")

	assert.Equal(t, "Insufficient USDC balance.", c.Message(CategoryInsufficientFunds, types.SymbolUSDC))
	assert.Equal(t, "Payment successful!", c.Message(CategorySuccess, types.SymbolLAT))
	assert.True(t, c.Classify(nil, types.SymbolLAT).Success())
}

func TestForOutcome(t *testing.T) {
	c := NewClassifier("PlatON")

	assert.Equal(t, LevelSuccess, ForOutcome(c.Classify(nil, types.SymbolLAT)).Level)
	assert.Equal(t, LevelWarning, ForOutcome(c.Classify(types.NewError(types.ErrUserRejected, "", nil), types.SymbolLAT)).Level)
	assert.Equal(t, LevelError, ForOutcome(c.Classify(errors.New("x"), types.SymbolLAT)).Level)
}

func TestMemoryNotifier(t *testing.T) {
	var n MemoryNotifier

	_, ok := n.Last()
	assert.False(t, ok)

	n.Notify(Notification{Level: LevelLoading, Message: "Transaction processing..."})
	n.Notify(Notification{Level: LevelSuccess, Message: "done"})

	last, ok := n.Last()
	assert.True(t, ok)
	assert.Equal(t, LevelSuccess, last.Level)
	assert.Len(t, n.All(), 2)
}
