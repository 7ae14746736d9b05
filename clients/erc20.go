package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/latpay/types"
)

// Only the ABI surface the payment flow consumes.
const erc20ABI = `[
  {"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20ABI is the parsed token ABI.
var ERC20ABI = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ERC20 reads and encodes calls against one token contract through a Gateway.
// The contract's code is checked once, before the first read.
type ERC20 struct {
	gw       Gateway
	contract common.Address
	deployed bool
}

func NewERC20(gw Gateway, contract common.Address) *ERC20 {
	return &ERC20{gw: gw, contract: contract}
}

// Address returns the contract address.
func (e *ERC20) Address() common.Address {
	return e.contract
}

// EnsureDeployed fails with INVALID_CONTRACT when the address holds no code.
func (e *ERC20) EnsureDeployed(ctx context.Context) error {
	if e.deployed {
		return nil
	}

	code, err := e.gw.CodeAt(ctx, e.contract)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return types.NewError(types.ErrInvalidContract, fmt.Sprintf("no contract deployed at %s", e.contract.Hex()), nil)
	}

	e.deployed = true
	return nil
}

func (e *ERC20) Symbol(ctx context.Context) (string, error) {
	out, err := e.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", e.badOutput("symbol", out[0])
	}
	return s, nil
}

func (e *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := e.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, e.badOutput("decimals", out[0])
	}
	return d, nil
}

func (e *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := e.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	b, ok := out[0].(*big.Int)
	if !ok {
		return nil, e.badOutput("balanceOf", out[0])
	}
	return b, nil
}

// TransferData encodes transfer(to, amount).
func (e *ERC20) TransferData(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("transfer amount must be non-negative")
	}
	return ERC20ABI.Pack("transfer", to, amount)
}

func (e *ERC20) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if err := e.EnsureDeployed(ctx); err != nil {
		return nil, err
	}

	data, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	raw, err := e.gw.Call(ctx, e.contract, data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, types.NewError(types.ErrInvalidContract, fmt.Sprintf("%s returned no data from %s", method, e.contract.Hex()), nil)
	}

	out, err := ERC20ABI.Unpack(method, raw)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidContract, fmt.Sprintf("cannot decode %s output", method), err)
	}
	if len(out) == 0 {
		return nil, types.NewError(types.ErrInvalidContract, fmt.Sprintf("%s returned nothing", method), nil)
	}
	return out, nil
}

func (e *ERC20) badOutput(method string, v interface{}) error {
	return types.NewError(types.ErrInvalidContract, fmt.Sprintf("%s returned %T", method, v), nil)
}

// EncodeTransfer is TransferData without a bound contract.
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return (&ERC20{}).TransferData(to, amount)
}

// DecodeTransfer reverses EncodeTransfer.
func DecodeTransfer(data []byte) (common.Address, *big.Int, error) {
	method, ok := ERC20ABI.Methods["transfer"]
	if !ok || len(data) < 4 || string(data[:4]) != string(method.ID) {
		return common.Address{}, nil, fmt.Errorf("not a transfer call")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, err
	}
	to, _ := args[0].(common.Address)
	amount, _ := args[1].(*big.Int)
	return to, amount, nil
}
