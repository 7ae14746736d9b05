package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks that amount is a usable display amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount cannot be negative")
	}
	return nil
}

// ParseAmount parses a display amount string.
func ParseAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}
	if err := ValidateAmount(dec); err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}

// ToSmallestUnit converts a display amount to the token's base unit,
// rounding half away from zero to the nearest representable unit.
func ToSmallestUnit(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return amount.Shift(int32(decimals)).Round(0).BigInt(), nil
}

// FromSmallestUnit converts a base-unit integer into a display amount.
// Negative inputs clamp to zero.
func FromSmallestUnit(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil || value.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// FormatAmount renders a base-unit amount with two fractional digits, the
// way balances are displayed next to the asset selector.
func FormatAmount(value *big.Int, decimals uint8) string {
	return FromSmallestUnit(value, decimals).StringFixed(2)
}
