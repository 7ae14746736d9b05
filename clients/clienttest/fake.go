// Package clienttest provides a scripted in-memory Gateway.
package clienttest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/types"
)

var _ clients.Gateway = (*Gateway)(nil)

// Token is a fake ERC20 contract.
type Token struct {
	Symbol   string
	Decimals uint8
	Balances map[common.Address]*big.Int

	// Errors returned per ABI method name.
	Errs map[string]error
}

// Gateway answers from fields set by the test. All methods are safe for
// concurrent use.
type Gateway struct {
	mu sync.Mutex

	Accounts    []common.Address
	AccountsErr error

	Chain     *big.Int
	ChainErr  error
	SwitchErr error

	Tokens map[common.Address]*Token
	Native map[common.Address]*big.Int

	// Code overrides; token addresses get code automatically.
	Code map[common.Address][]byte

	SendErr       error
	ReceiptStatus uint64
	ReceiptErr    error

	// When non-nil, WaitReceipt blocks until it is closed.
	ReceiptGate chan struct{}

	// Closed once a transaction has been sent.
	SentSignal chan struct{}

	calls []string
	sent  []types.TxRequest
}

// New returns a gateway on chainID with one account and status-1 receipts.
func New(chainID uint64, account common.Address) *Gateway {
	return &Gateway{
		Accounts:      []common.Address{account},
		Chain:         new(big.Int).SetUint64(chainID),
		Tokens:        make(map[common.Address]*Token),
		Native:        make(map[common.Address]*big.Int),
		Code:          make(map[common.Address][]byte),
		ReceiptStatus: 1,
		SentSignal:    make(chan struct{}),
	}
}

// AddToken deploys a fake token at addr.
func (g *Gateway) AddToken(addr common.Address, symbol string, decimals uint8) *Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := &Token{
		Symbol:   symbol,
		Decimals: decimals,
		Balances: make(map[common.Address]*big.Int),
		Errs:     make(map[string]error),
	}
	g.Tokens[addr] = t
	return t
}

// SetBalance sets owner's balance of token at addr.
func (g *Gateway) SetBalance(addr, owner common.Address, v *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Tokens[addr].Balances[owner] = v
}

// Calls returns the method names invoked so far.
func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Called reports whether method was invoked.
func (g *Gateway) Called(method string) bool {
	for _, c := range g.Calls() {
		if c == method {
			return true
		}
	}
	return false
}

// Sent returns the submitted transactions.
func (g *Gateway) Sent() []types.TxRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.TxRequest(nil), g.sent...)
}

func (g *Gateway) record(method string) {
	g.mu.Lock()
	g.calls = append(g.calls, method)
	g.mu.Unlock()
}

func (g *Gateway) Close() {}

func (g *Gateway) RequestAccounts(context.Context) ([]common.Address, error) {
	g.record(clients.MethodRequestAccounts)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AccountsErr != nil {
		return nil, g.AccountsErr
	}
	return append([]common.Address(nil), g.Accounts...), nil
}

func (g *Gateway) ChainID(context.Context) (*big.Int, error) {
	g.record(clients.MethodChainID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ChainErr != nil {
		return nil, g.ChainErr
	}
	return new(big.Int).Set(g.Chain), nil
}

func (g *Gateway) SwitchChain(_ context.Context, chain types.ChainEndpoint) error {
	g.record(clients.MethodSwitchChain)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SwitchErr != nil {
		return g.SwitchErr
	}
	g.Chain = chain.BigID()
	return nil
}

func (g *Gateway) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	g.record(clients.MethodGetCode)
	g.mu.Lock()
	defer g.mu.Unlock()
	if code, ok := g.Code[addr]; ok {
		return code, nil
	}
	if _, ok := g.Tokens[addr]; ok {
		return []byte{0x60, 0x80, 0x60, 0x40}, nil
	}
	return nil, nil
}

func (g *Gateway) Call(_ context.Context, contract common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("short call data")
	}
	method, err := clients.ERC20ABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	g.record(method.Name)

	g.mu.Lock()
	defer g.mu.Unlock()

	tok, ok := g.Tokens[contract]
	if !ok {
		return nil, nil
	}
	if err := tok.Errs[method.Name]; err != nil {
		return nil, err
	}

	switch method.Name {
	case "symbol":
		return method.Outputs.Pack(tok.Symbol)
	case "decimals":
		return method.Outputs.Pack(tok.Decimals)
	case "balanceOf":
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		bal := tok.Balances[args[0].(common.Address)]
		if bal == nil {
			bal = new(big.Int)
		}
		return method.Outputs.Pack(bal)
	}
	return nil, fmt.Errorf("unexpected call %s", method.Name)
}

func (g *Gateway) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	g.record(clients.MethodGetBalance)
	g.mu.Lock()
	defer g.mu.Unlock()
	if b := g.Native[account]; b != nil {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (g *Gateway) Send(_ context.Context, tx types.TxRequest) (common.Hash, error) {
	g.record(clients.MethodSendTransaction)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendErr != nil {
		return common.Hash{}, g.SendErr
	}
	g.sent = append(g.sent, tx)
	if len(g.sent) == 1 && g.SentSignal != nil {
		close(g.SentSignal)
	}
	return crypto.Keccak256Hash(tx.To.Bytes(), tx.Data, big.NewInt(int64(len(g.sent))).Bytes()), nil
}

func (g *Gateway) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	g.record(clients.MethodGetReceipt)

	g.mu.Lock()
	gate := g.ReceiptGate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ReceiptErr != nil {
		return nil, g.ReceiptErr
	}
	return &types.Receipt{TxHash: hash, Status: g.ReceiptStatus, BlockNumber: 1}, nil
}
