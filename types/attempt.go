package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// State is a step of the payment state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateValidating
	StateConverting
	StateSubmitting
	StateAwaitingConfirmation
	StateSettled
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateConnecting:           "connecting",
	StateValidating:           "validating",
	StateConverting:           "converting",
	StateSubmitting:           "submitting",
	StateAwaitingConfirmation: "awaiting_confirmation",
	StateSettled:              "settled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Accepting reports whether a new attempt may start from s.
func (s State) Accepting() bool {
	return s == StateIdle || s == StateSettled
}

// Collaborator is what the surrounding UI hands to the orchestrator.
type Collaborator struct {
	PlanName string

	// USD-equivalent amount shown to the user.
	Amount decimal.Decimal

	OnBack    func()
	OnSuccess func()
}

// PaymentAttempt holds everything about one submission. It lives from
// submit until its outcome is reported and is never persisted.
type PaymentAttempt struct {
	ID    string
	Asset TokenDescriptor

	// Display amount and its smallest-unit conversion.
	Amount   decimal.Decimal
	Decimals uint8
	Value    *big.Int

	Account   common.Address
	Recipient common.Address

	TxHash common.Hash
	State  State

	// Meaningful once State is StateSettled.
	Success bool
	Err     error

	StartedAt time.Time
	EndedAt   time.Time
}

// Settled reports whether the attempt reached a final outcome.
func (a *PaymentAttempt) Settled() bool {
	return a.State == StateSettled
}

// Receipt is the chain's verdict on a submitted transaction.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the receipt status is 1.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// TxRequest is a value or contract transfer handed to a gateway for
// signing and broadcast.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}
