package types

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Symbol is the ticker of a payable asset.
type Symbol string

const (
	SymbolUSDT Symbol = "USDT"
	SymbolUSDC Symbol = "USDC"
	SymbolLAT  Symbol = "LAT"
)

func (s Symbol) String() string {
	return string(s)
}

// TokenStandard represents the transfer path an asset takes.
type TokenStandard string

const (
	TokenStandardERC20  TokenStandard = "erc20"
	TokenStandardNative TokenStandard = "native"
)

// NativeDecimals is the precision of the chain's native currency.
const NativeDecimals uint8 = 18

// ChainEndpoint identifies the single network payments are accepted on.
type ChainEndpoint struct {
	// Numeric EIP-155 chain id (e.g. 210425 for PlatON mainnet).
	ID uint64 `json:"id" validate:"required"`

	// Human readable network name shown in wallet switch prompts.
	Name string `json:"name" validate:"required"`

	// Native currency symbol reported to the wallet when adding the chain.
	NativeSymbol Symbol `json:"nativeSymbol,omitempty"`

	// RPC endpoints suggested to the wallet when it does not know the chain.
	RPCUrls []string `json:"rpcUrls,omitempty"`
}

// HexID returns the chain id in the 0x-prefixed form wallets expect
// for wallet_switchEthereumChain.
func (c ChainEndpoint) HexID() string {
	return hexutil.EncodeUint64(c.ID)
}

// BigID returns the chain id as a *big.Int.
func (c ChainEndpoint) BigID() *big.Int {
	return new(big.Int).SetUint64(c.ID)
}

// Matches reports whether id equals this endpoint's chain id.
func (c ChainEndpoint) Matches(id *big.Int) bool {
	return id != nil && id.IsUint64() && id.Uint64() == c.ID
}

func (c ChainEndpoint) String() string {
	return fmt.Sprintf("%s(%d)", c.Name, c.ID)
}

// TokenDescriptor describes one payable asset. Decimals are deliberately
// absent: they are read from the contract for every session.
type TokenDescriptor struct {
	Symbol   Symbol        `json:"symbol" validate:"required"`
	Standard TokenStandard `json:"standard" validate:"required,oneof=erc20 native"`

	// Contract address for tokens, empty for native.
	Address string `json:"address,omitempty" validate:"omitempty,eth_addr"`

	Name string `json:"name,omitempty"`
}

// IsNative reports whether the asset is the chain's native currency.
func (t TokenDescriptor) IsNative() bool {
	return t.Standard == TokenStandardNative
}

// Contract returns the token contract address. It is the zero address for
// native assets.
func (t TokenDescriptor) Contract() common.Address {
	if t.IsNative() {
		return common.Address{}
	}
	return common.HexToAddress(t.Address)
}

// Config is the fixed configuration consumed by the orchestrator. It is
// built once and never mutated after construction.
type Config struct {
	Chain  ChainEndpoint     `json:"chain"`
	Assets []TokenDescriptor `json:"assets" validate:"required,min=1,dive"`

	// Recipient in the chain's native bech32 format.
	Recipient string `json:"recipient" validate:"required"`

	// Human readable part of native addresses.
	AddressPrefix string `json:"addressPrefix" validate:"required,lowercase"`

	LogLevel string `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Upper bound for read-only provider calls. Zero means no bound.
	ReadTimeout time.Duration `json:"readTimeout,omitempty"`

	// How often a gateway polls for a receipt.
	ReceiptPollInterval time.Duration `json:"receiptPollInterval,omitempty"`
}

// Asset looks up the descriptor for sym.
func (c *Config) Asset(sym Symbol) (TokenDescriptor, bool) {
	for _, a := range c.Assets {
		if strings.EqualFold(string(a.Symbol), string(sym)) {
			return a, true
		}
	}
	return TokenDescriptor{}, false
}

// Symbols lists the configured assets in declaration order.
func (c *Config) Symbols() []Symbol {
	out := make([]Symbol, 0, len(c.Assets))
	for _, a := range c.Assets {
		out = append(out, a.Symbol)
	}
	return out
}

// PlatON mainnet constants.
const (
	PlatONChainID      uint64 = 210425
	PlatONPrefix              = "lat"
	PlatONUSDTContract        = "0xeac734fb7581D8eB2CE4949B0896FC4E76769509"
	PlatONUSDCContract        = "0xdA396A3C7FC762643f658B47228CD51De6cE936d"
	PlatONRecipient           = "lat1xlczc4ncd86h99v54f3xrjwrgkwswlsyalq7cn"
)

// PlatONMainnet returns the production configuration.
func PlatONMainnet() Config {
	return Config{
		Chain: ChainEndpoint{
			ID:           PlatONChainID,
			Name:         "PlatON",
			NativeSymbol: SymbolLAT,
			RPCUrls:      []string{"https://openapi2.platon.network/rpc"},
		},
		Assets: []TokenDescriptor{
			{Symbol: SymbolUSDT, Standard: TokenStandardERC20, Address: PlatONUSDTContract, Name: "Tether USD"},
			{Symbol: SymbolUSDC, Standard: TokenStandardERC20, Address: PlatONUSDCContract, Name: "USD Coin"},
			{Symbol: SymbolLAT, Standard: TokenStandardNative, Name: "PlatON"},
		},
		Recipient:           PlatONRecipient,
		AddressPrefix:       PlatONPrefix,
		LogLevel:            "info",
		ReadTimeout:         30 * time.Second,
		ReceiptPollInterval: time.Second,
	}
}
