package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/latpay/types"
)

var _ Gateway = (*WalletGateway)(nil)

const defaultPollInterval = time.Second

// WalletGateway talks EIP-1193 JSON-RPC to a wallet that holds the keys
// and prompts the user (account access, network switch, signing).
type WalletGateway struct {
	rpc          *rpc.Client
	pollInterval time.Duration
}

// DialWallet connects to a wallet endpoint. A failed dial means there is no
// wallet to talk to.
func DialWallet(ctx context.Context, url string, pollInterval time.Duration) (*WalletGateway, error) {
	if url == "" {
		return nil, types.NewError(types.ErrWalletUnavailable, "no wallet endpoint configured", nil)
	}

	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, types.NewError(types.ErrWalletUnavailable, fmt.Sprintf("failed to reach wallet at %s", url), err)
	}
	return NewWalletGateway(c, pollInterval), nil
}

func NewWalletGateway(c *rpc.Client, pollInterval time.Duration) *WalletGateway {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &WalletGateway{rpc: c, pollInterval: pollInterval}
}

func (w *WalletGateway) Close() {
	w.rpc.Close()
}

func (w *WalletGateway) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := w.rpc.CallContext(ctx, &accounts, MethodRequestAccounts); err != nil {
		var rpcErr rpc.Error
		if !errors.As(err, &rpcErr) && ctx.Err() == nil {
			return nil, types.NewError(types.ErrWalletUnavailable, "wallet did not answer", err)
		}
		return nil, wrapProviderError(MethodRequestAccounts, err)
	}
	return accounts, nil
}

func (w *WalletGateway) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := w.rpc.CallContext(ctx, &id, MethodChainID); err != nil {
		return nil, wrapProviderError(MethodChainID, err)
	}
	return (*big.Int)(&id), nil
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

type addChainParams struct {
	ChainID        string         `json:"chainId"`
	ChainName      string         `json:"chainName"`
	NativeCurrency nativeCurrency `json:"nativeCurrency"`
	RPCUrls        []string       `json:"rpcUrls"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// SwitchChain requests wallet_switchEthereumChain. A wallet that does not
// know the chain gets a single wallet_addEthereumChain request when RPC
// endpoints are configured.
func (w *WalletGateway) SwitchChain(ctx context.Context, chain types.ChainEndpoint) error {
	err := w.rpc.CallContext(ctx, nil, MethodSwitchChain, switchChainParams{ChainID: chain.HexID()})
	if err == nil {
		return nil
	}
	if ProviderCode(err) != CodeUnrecognizedChain || len(chain.RPCUrls) == 0 {
		return wrapProviderError(MethodSwitchChain, err)
	}

	add := addChainParams{
		ChainID:   chain.HexID(),
		ChainName: chain.Name,
		NativeCurrency: nativeCurrency{
			Name:     chain.NativeSymbol.String(),
			Symbol:   chain.NativeSymbol.String(),
			Decimals: types.NativeDecimals,
		},
		RPCUrls: chain.RPCUrls,
	}
	if err := w.rpc.CallContext(ctx, nil, MethodAddChain, add); err != nil {
		return wrapProviderError(MethodAddChain, err)
	}
	return nil
}

func (w *WalletGateway) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code hexutil.Bytes
	if err := w.rpc.CallContext(ctx, &code, MethodGetCode, addr, "latest"); err != nil {
		return nil, wrapProviderError(MethodGetCode, err)
	}
	return code, nil
}

type callArgs struct {
	From  *common.Address `json:"from,omitempty"`
	To    common.Address  `json:"to"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func (w *WalletGateway) Call(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	if err := w.rpc.CallContext(ctx, &out, MethodCall, callArgs{To: contract, Data: data}, "latest"); err != nil {
		return nil, wrapProviderError(MethodCall, err)
	}
	return out, nil
}

func (w *WalletGateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := w.rpc.CallContext(ctx, &bal, MethodGetBalance, account, "latest"); err != nil {
		return nil, wrapProviderError(MethodGetBalance, err)
	}
	return (*big.Int)(&bal), nil
}

func (w *WalletGateway) Send(ctx context.Context, tx types.TxRequest) (common.Hash, error) {
	args := callArgs{From: &tx.From, To: tx.To, Data: tx.Data}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(tx.Value)
	}

	var hash common.Hash
	if err := w.rpc.CallContext(ctx, &hash, MethodSendTransaction, args); err != nil {
		return common.Hash{}, wrapProviderError(MethodSendTransaction, err)
	}
	return hash, nil
}

type rpcReceipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

func (w *WalletGateway) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		var r *rpcReceipt
		err := w.rpc.CallContext(ctx, &r, MethodGetReceipt, hash)
		if err != nil && ctx.Err() == nil {
			return nil, wrapProviderError(MethodGetReceipt, err)
		}
		if r != nil && r.BlockNumber != nil {
			return &types.Receipt{
				TxHash:      r.TxHash,
				Status:      uint64(r.Status),
				BlockNumber: (*big.Int)(r.BlockNumber).Uint64(),
				GasUsed:     uint64(r.GasUsed),
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
