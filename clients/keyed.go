package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
)

var _ Gateway = (*KeyedGateway)(nil)

// KeyedGateway signs locally with a private key and broadcasts through a
// plain node connection. Account access is implicit and the active network
// is whatever the node serves, so it can never switch chains.
type KeyedGateway struct {
	eth          *ethclient.Client
	key          *ecdsa.PrivateKey
	account      common.Address
	pollInterval time.Duration
}

// DialKeyed connects to rpcURL and loads the signing key from hex.
func DialKeyed(ctx context.Context, rpcURL, keyHex string, pollInterval time.Duration) (*KeyedGateway, error) {
	key, err := utils.PrivateKeyFromHex(keyHex)
	if err != nil {
		return nil, types.NewError(types.ErrWalletUnavailable, "signing key unavailable", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, types.NewError(types.ErrWalletUnavailable, fmt.Sprintf("failed to connect to %s", rpcURL), err)
	}

	return NewKeyedGateway(eth, key, pollInterval), nil
}

func NewKeyedGateway(eth *ethclient.Client, key *ecdsa.PrivateKey, pollInterval time.Duration) *KeyedGateway {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &KeyedGateway{
		eth:          eth,
		key:          key,
		account:      utils.AddressFromPrivateKey(key),
		pollInterval: pollInterval,
	}
}

func (k *KeyedGateway) Close() {
	k.eth.Close()
}

func (k *KeyedGateway) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{k.account}, nil
}

func (k *KeyedGateway) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := k.eth.ChainID(ctx)
	if err != nil {
		return nil, wrapProviderError(MethodChainID, err)
	}
	return id, nil
}

func (k *KeyedGateway) SwitchChain(ctx context.Context, chain types.ChainEndpoint) error {
	id, err := k.ChainID(ctx)
	if err != nil {
		return err
	}
	if chain.Matches(id) {
		return nil
	}
	return &types.PayError{
		Code:         types.ErrWrongNetwork,
		Message:      fmt.Sprintf("node serves chain %s, cannot switch to %s", id, chain),
		ProviderCode: CodeUnsupportedMethod,
	}
}

func (k *KeyedGateway) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := k.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, wrapProviderError(MethodGetCode, err)
	}
	return code, nil
}

func (k *KeyedGateway) Call(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		From: k.account,
		To:   &contract,
		Data: data,
	}
	out, err := k.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, wrapProviderError(MethodCall, err)
	}
	return out, nil
}

func (k *KeyedGateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := k.eth.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, wrapProviderError(MethodGetBalance, err)
	}
	return bal, nil
}

func (k *KeyedGateway) Send(ctx context.Context, req types.TxRequest) (common.Hash, error) {
	if req.From != (common.Address{}) && req.From != k.account {
		return common.Hash{}, types.NewError(types.ErrUserRejected, fmt.Sprintf("key does not control %s", req.From.Hex()), nil)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := k.eth.PendingNonceAt(ctx, k.account)
	if err != nil {
		return common.Hash{}, wrapProviderError(MethodSendTransaction, fmt.Errorf("failed to get nonce: %w", err))
	}

	gasPrice, err := k.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, wrapProviderError(MethodSendTransaction, fmt.Errorf("failed to get gas price: %w", err))
	}

	gas, err := k.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  k.account,
		To:    &req.To,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, wrapProviderError(MethodSendTransaction, fmt.Errorf("failed to estimate gas: %w", err))
	}

	chainID, err := k.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), k.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := k.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, wrapProviderError(MethodSendTransaction, err)
	}
	return signed.Hash(), nil
}

func (k *KeyedGateway) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(k.pollInterval)
	defer ticker.Stop()

	for {
		r, err := k.eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return &types.Receipt{
				TxHash:      r.TxHash,
				Status:      r.Status,
				BlockNumber: r.BlockNumber.Uint64(),
				GasUsed:     r.GasUsed,
			}, nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() == nil:
			return nil, wrapProviderError(MethodGetReceipt, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
