// Package address converts between the chain-native bech32 account format
// and the 20-byte hex format used in contract call payloads.
package address

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/latpay/types"
)

// Codec converts addresses for a single human readable prefix.
type Codec struct {
	prefix string
}

// NewCodec returns a codec for prefix (e.g. "lat").
func NewCodec(prefix string) (*Codec, error) {
	if prefix == "" || prefix != strings.ToLower(prefix) {
		return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("invalid address prefix %q", prefix), nil)
	}
	return &Codec{prefix: prefix}, nil
}

// Prefix returns the human readable part the codec accepts.
func (c *Codec) Prefix() string {
	return c.prefix
}

// ToHex decodes a native address into its hex form.
func (c *Codec) ToHex(native string) (common.Address, error) {
	native = strings.TrimSpace(native)
	if !strings.HasPrefix(strings.ToLower(native), c.prefix+"1") {
		return common.Address{}, formatError(native, fmt.Errorf("missing %q prefix", c.prefix))
	}

	hrp, data, err := bech32.Decode(native)
	if err != nil {
		return common.Address{}, formatError(native, err)
	}
	if hrp != c.prefix {
		return common.Address{}, formatError(native, fmt.Errorf("prefix %q, want %q", hrp, c.prefix))
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return common.Address{}, formatError(native, err)
	}
	if len(raw) != common.AddressLength {
		return common.Address{}, formatError(native, fmt.Errorf("decoded %d bytes, want %d", len(raw), common.AddressLength))
	}

	return common.BytesToAddress(raw), nil
}

// ToNative encodes a 0x-prefixed hex address into the native format.
func (c *Codec) ToNative(hexAddr string) (string, error) {
	hexAddr = strings.TrimSpace(hexAddr)
	if !strings.HasPrefix(hexAddr, "0x") && !strings.HasPrefix(hexAddr, "0X") {
		return "", formatError(hexAddr, fmt.Errorf("missing 0x prefix"))
	}
	if !common.IsHexAddress(hexAddr) {
		return "", formatError(hexAddr, fmt.Errorf("not a 20-byte hex address"))
	}
	return c.Encode(common.HexToAddress(hexAddr))
}

// Encode converts a parsed hex address into the native format.
func (c *Codec) Encode(addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", formatError(addr.Hex(), err)
	}
	out, err := bech32.Encode(c.prefix, conv)
	if err != nil {
		return "", formatError(addr.Hex(), err)
	}
	return out, nil
}

// Valid reports whether native decodes cleanly.
func (c *Codec) Valid(native string) bool {
	_, err := c.ToHex(native)
	return err == nil
}

func formatError(input string, err error) error {
	return types.NewError(types.ErrAddressFormat, fmt.Sprintf("cannot convert address %q", input), err)
}
