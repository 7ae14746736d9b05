package types

import (
	"errors"
	"fmt"
)

// Error codes of the payment taxonomy.
const (
	ErrWalletUnavailable      = "WALLET_UNAVAILABLE"
	ErrUserRejected           = "USER_REJECTED"
	ErrWrongNetwork           = "WRONG_NETWORK"
	ErrInvalidContract        = "INVALID_CONTRACT"
	ErrAddressFormat          = "ADDRESS_FORMAT"
	ErrInsufficientFunds      = "INSUFFICIENT_FUNDS"
	ErrProviderCall           = "PROVIDER_CALL"
	ErrUnknownTransferFailure = "UNKNOWN_TRANSFER_FAILURE"
	ErrBusy                   = "BUSY"
	ErrInvalidConfig          = "INVALID_CONFIG"
)

// PayError is the single error type crossing package boundaries.
type PayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Raw code reported by the wallet or node, zero when unknown.
	ProviderCode int `json:"providerCode,omitempty"`

	Err error `json:"-"`
}

func (e *PayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PayError) Unwrap() error {
	return e.Err
}

// NewError builds a PayError wrapping err, which may be nil.
func NewError(code, message string, err error) *PayError {
	return &PayError{Code: code, Message: message, Err: err}
}

// NewProviderError builds a PROVIDER_CALL error carrying the provider's code.
func NewProviderError(method string, providerCode int, err error) *PayError {
	return &PayError{
		Code:         ErrProviderCall,
		Message:      fmt.Sprintf("%s failed", method),
		ProviderCode: providerCode,
		Err:          err,
	}
}

// CodeOf returns the taxonomy code of err, or "" when err carries none.
func CodeOf(err error) string {
	var pe *PayError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err belongs to the given taxonomy code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
