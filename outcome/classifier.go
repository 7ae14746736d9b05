// Package outcome maps payment errors onto the small set of results the
// user is told about.
package outcome

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/types"
)

// Category is a user-facing result class.
type Category string

const (
	CategorySuccess           Category = "success"
	CategoryWalletUnavailable Category = "wallet_unavailable"
	CategoryUserRejected      Category = "user_rejected"
	CategoryWrongNetwork      Category = "wrong_network"
	CategoryInvalidContract   Category = "invalid_contract"
	CategoryAddressFormat     Category = "address_format"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryBusy              Category = "busy"

	// Everything unmapped, including raw provider failures.
	CategoryFailed Category = "failed"
)

// Outcome is a classified result.
type Outcome struct {
	Category     Category
	Code         string
	Message      string
	ProviderCode int
}

// Success reports whether the outcome is a settled success.
func (o Outcome) Success() bool {
	return o.Category == CategorySuccess
}

var codeCategories = map[string]Category{
	types.ErrWalletUnavailable: CategoryWalletUnavailable,
	types.ErrUserRejected:      CategoryUserRejected,
	types.ErrWrongNetwork:      CategoryWrongNetwork,
	types.ErrInvalidContract:   CategoryInvalidContract,
	types.ErrAddressFormat:     CategoryAddressFormat,
	types.ErrInsufficientFunds: CategoryInsufficientFunds,
	types.ErrBusy:              CategoryBusy,
}

// Provider texts seen in the wild for a declined prompt.
var rejectionMarkers = []string{
	"action_rejected",
	"user rejected",
	"user denied",
	"user cancelled",
}

// Revert reasons and node errors that mean the payer is short.
var insufficientMarkers = []string{
	"transfer amount exceeds balance",
	"insufficient funds",
	"insufficient balance",
}

// Classifier turns errors into outcomes with user messages.
type Classifier struct {
	chainName string
}

func NewClassifier(chainName string) *Classifier {
	return &Classifier{chainName: chainName}
}

// Classify maps err for a payment in asset. A nil err is success.
func (c *Classifier) Classify(err error, asset types.Symbol) Outcome {
	if err == nil {
		return c.outcome(CategorySuccess, "", 0, asset)
	}

	providerCode := clients.ProviderCode(err)

	var pe *types.PayError
	if errors.As(err, &pe) {
		if cat, ok := codeCategories[pe.Code]; ok {
			return c.outcome(cat, pe.Code, providerCode, asset)
		}
	}

	if providerCode == clients.CodeUserRejected || containsAny(err, rejectionMarkers) {
		return c.outcome(CategoryUserRejected, types.ErrUserRejected, providerCode, asset)
	}
	if containsAny(err, insufficientMarkers) {
		return c.outcome(CategoryInsufficientFunds, types.ErrInsufficientFunds, providerCode, asset)
	}

	code := types.ErrUnknownTransferFailure
	if pe != nil {
		code = pe.Code
	}
	return c.outcome(CategoryFailed, code, providerCode, asset)
}

func (c *Classifier) outcome(cat Category, code string, providerCode int, asset types.Symbol) Outcome {
	return Outcome{
		Category:     cat,
		Code:         code,
		Message:      c.Message(cat, asset),
		ProviderCode: providerCode,
	}
}

// Message returns the text shown to the user for cat.
func (c *Classifier) Message(cat Category, asset types.Symbol) string {
	switch cat {
	case CategorySuccess:
		return "Payment successful!"
	case CategoryWalletUnavailable:
		return "Please install or enable a browser wallet such as MetaMask."
	case CategoryUserRejected:
		return "Transaction cancelled by user."
	case CategoryWrongNetwork:
		return fmt.Sprintf("Please switch your wallet to the %s network.", c.chainName)
	case CategoryInvalidContract:
		return "Invalid token contract address."
	case CategoryAddressFormat:
		return "Payment recipient address is invalid."
	case CategoryInsufficientFunds:
		return fmt.Sprintf("Insufficient %s balance.", asset)
	case CategoryBusy:
		return "A payment is already being processed."
	default:
		return "Payment failed, please retry."
	}
}

// containsAny searches the error chain text and any structured provider
// data for one of markers.
func containsAny(err error, markers []string) bool {
	texts := []string{strings.ToLower(err.Error())}
	if data := clients.ProviderData(err); data != nil {
		texts = append(texts, strings.ToLower(fmt.Sprint(data)))
	}

	for _, text := range texts {
		for _, m := range markers {
			if strings.Contains(text, m) {
				return true
			}
		}
	}
	return false
}
