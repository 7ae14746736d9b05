package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/latpay/types"
)

// Gateway is the capability surface of a connected wallet. Implementations
// exist per client library; the payment state machine only sees this.
type Gateway interface {
	// RequestAccounts asks the wallet for account access. It blocks until the
	// user answers and fails with USER_REJECTED when they decline.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	ChainID(ctx context.Context) (*big.Int, error)

	// SwitchChain asks the wallet to make chain the active network.
	SwitchChain(ctx context.Context, chain types.ChainEndpoint) error

	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	Call(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)

	// Send submits tx for signing and broadcast and returns its hash.
	Send(ctx context.Context, tx types.TxRequest) (common.Hash, error)

	// WaitReceipt blocks until tx is included or ctx is done. There is no
	// internal deadline.
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	Close()
}
