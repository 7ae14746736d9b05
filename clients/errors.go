package clients

import (
	"errors"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/latpay/types"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeDisconnected       = 4900
	CodeChainDisconnected  = 4901
	CodeUnrecognizedChain  = 4902
	CodeRequestPending     = -32002
	CodeMethodNotFound     = -32601
	CodeInternalError      = -32603
	CodeExecutionReverted  = 3
	CodeInvalidRPCResponse = -32000
)

// Wallet JSON-RPC methods.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodGetCode         = "eth_getCode"
	MethodCall            = "eth_call"
	MethodGetBalance      = "eth_getBalance"
	MethodSendTransaction = "eth_sendTransaction"
	MethodGetReceipt      = "eth_getTransactionReceipt"
)

// ProviderCode extracts the wallet/node error code from err, or 0.
func ProviderCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	var pe *types.PayError
	if errors.As(err, &pe) {
		return pe.ProviderCode
	}
	return 0
}

// ProviderData extracts the structured error data attached by the node, if any.
func ProviderData(err error) any {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return dataErr.ErrorData()
	}
	return nil
}

// wrapProviderError maps a raw client error into the taxonomy. Errors that
// are already classified pass through.
func wrapProviderError(method string, err error) error {
	if err == nil {
		return nil
	}

	var pe *types.PayError
	if errors.As(err, &pe) {
		return err
	}

	code := ProviderCode(err)
	switch code {
	case CodeUserRejected, CodeUnauthorized:
		return &types.PayError{
			Code:         types.ErrUserRejected,
			Message:      "request rejected in wallet",
			ProviderCode: code,
			Err:          err,
		}
	case CodeMethodNotFound, CodeUnsupportedMethod, CodeDisconnected:
		if method == MethodRequestAccounts {
			return &types.PayError{
				Code:         types.ErrWalletUnavailable,
				Message:      "endpoint does not expose a wallet",
				ProviderCode: code,
				Err:          err,
			}
		}
	}

	return types.NewProviderError(method, code, err)
}
