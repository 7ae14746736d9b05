package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/latpay/address"
	"github.com/vitwit/latpay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseConfig decodes and validates a JSON configuration.
func ParseConfig(data []byte) (*types.Config, error) {
	var cfg types.Config

	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, types.NewError(types.ErrInvalidConfig, "failed to parse config", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks struct tags plus the cross-field rules tags cannot express.
func ValidateConfig(cfg *types.Config) error {
	if cfg == nil {
		return types.NewError(types.ErrInvalidConfig, "config is nil", nil)
	}

	if err := validate.Struct(cfg); err != nil {
		return types.NewError(types.ErrInvalidConfig, "validation failed", err)
	}

	seen := make(map[string]bool, len(cfg.Assets))
	natives := 0
	for _, a := range cfg.Assets {
		key := strings.ToUpper(string(a.Symbol))
		if seen[key] {
			return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("duplicate asset %s", a.Symbol), nil)
		}
		seen[key] = true

		switch a.Standard {
		case types.TokenStandardNative:
			natives++
			if a.Address != "" {
				return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("native asset %s must not have a contract", a.Symbol), nil)
			}
		case types.TokenStandardERC20:
			if a.Address == "" {
				return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("token %s has no contract address", a.Symbol), nil)
			}
		}
	}
	if natives > 1 {
		return types.NewError(types.ErrInvalidConfig, "at most one native asset may be configured", nil)
	}

	codec, err := address.NewCodec(cfg.AddressPrefix)
	if err != nil {
		return err
	}
	if _, err := codec.ToHex(cfg.Recipient); err != nil {
		return types.NewError(types.ErrInvalidConfig, "recipient is not a valid native address", err)
	}

	return nil
}
