// Package settlement runs a single payment attempt from wallet connection to
// on-chain confirmation.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitwit/latpay/address"
	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/logger"
	"github.com/vitwit/latpay/metrics"
	"github.com/vitwit/latpay/outcome"
	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
	"github.com/vitwit/latpay/verification"
)

const msgProcessing = "Transaction processing..."

// Options configures an Executor. Zero fields get no-op defaults.
type Options struct {
	Logger   logger.Logger
	Metrics  metrics.Recorder
	Notifier outcome.Notifier

	// Bound on read-only chain calls. Wallet prompts and the receipt wait
	// are never bounded.
	Timeout time.Duration
}

// Request is one user submit.
type Request struct {
	Asset  types.Symbol
	Amount decimal.Decimal

	// Called once when the attempt settles successfully.
	OnSuccess func()
}

// Result reports how an attempt ended. Attempt is nil when the submit was
// rejected because another attempt was in flight.
type Result struct {
	Attempt *types.PaymentAttempt
	Outcome outcome.Outcome
	Err     error
}

// Executor is the payment state machine. At most one attempt runs at a
// time; a concurrent submit is rejected, not queued.
type Executor struct {
	cfg        *types.Config
	gw         clients.Gateway
	codec      *address.Codec
	classifier *outcome.Classifier

	log      logger.Logger
	metrics  metrics.Recorder
	notifier outcome.Notifier
	timeout  time.Duration

	inFlight atomic.Bool

	mu    sync.Mutex
	state types.State
	last  *types.PaymentAttempt
}

func NewExecutor(cfg *types.Config, gw clients.Gateway, codec *address.Codec, opts Options) *Executor {
	e := &Executor{
		cfg:        cfg,
		gw:         gw,
		codec:      codec,
		classifier: outcome.NewClassifier(cfg.Chain.Name),
		log:        opts.Logger,
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		timeout:    opts.Timeout,
	}
	if e.log == nil {
		e.log = logger.NoopLogger{}
	}
	if e.metrics == nil {
		e.metrics = metrics.NoopRecorder{}
	}
	if e.notifier == nil {
		e.notifier = outcome.NoopNotifier{}
	}
	return e
}

// State returns the machine's current state.
func (e *Executor) State() types.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether an attempt or revalidation is in flight.
func (e *Executor) Busy() bool {
	return e.inFlight.Load()
}

// Last returns the most recent attempt, or nil.
func (e *Executor) Last() *types.PaymentAttempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Submit runs one attempt to completion. Every failure is classified into
// the returned Result; Submit itself never panics on provider errors.
func (e *Executor) Submit(ctx context.Context, req Request) Result {
	if !e.inFlight.CompareAndSwap(false, true) {
		return e.rejectBusy(req.Asset)
	}
	defer e.inFlight.Store(false)

	a := &types.PaymentAttempt{
		ID:        uuid.NewString(),
		Amount:    req.Amount,
		State:     types.StateIdle,
		StartedAt: time.Now(),
	}
	log := e.log.With(map[string]any{"attempt_id": a.ID, "asset": req.Asset})

	e.mu.Lock()
	e.last = a
	e.mu.Unlock()

	asset, err := verification.QuickVerify(e.cfg, req.Asset, req.Amount)
	a.Asset = asset
	if err != nil {
		return e.finish(log, a, types.StateIdle, err, nil)
	}

	e.metrics.IncCounter(metrics.EventAttemptStarted, map[string]string{"asset": asset.Symbol.String()})
	log.Info("payment started", map[string]any{"amount": req.Amount.String()})

	e.transition(log, a, types.StateConnecting)
	account, err := clients.Connect(ctx, e.gw)
	if err != nil {
		return e.finish(log, a, types.StateIdle, err, nil)
	}
	a.Account = account

	e.transition(log, a, types.StateValidating)
	if err := clients.EnsureChain(ctx, e.gw, e.cfg.Chain); err != nil {
		return e.finish(log, a, types.StateIdle, err, nil)
	}

	e.transition(log, a, types.StateConverting)
	decimals, held, err := e.funds(ctx, account, asset)
	if err != nil {
		return e.finish(log, a, types.StateSettled, err, nil)
	}
	a.Decimals = decimals

	value, err := utils.ToSmallestUnit(req.Amount, decimals)
	if err != nil {
		return e.finish(log, a, types.StateSettled, types.NewError(types.ErrUnknownTransferFailure, "amount conversion failed", err), nil)
	}
	a.Value = value

	if held.Cmp(value) < 0 {
		err := types.NewError(types.ErrInsufficientFunds, fmt.Sprintf("balance %s below required %s", utils.FormatAmount(held, decimals), req.Amount), nil)
		return e.finish(log, a, types.StateSettled, err, nil)
	}

	recipient, err := e.codec.ToHex(e.cfg.Recipient)
	if err != nil {
		return e.finish(log, a, types.StateSettled, err, nil)
	}
	a.Recipient = recipient

	tx, err := transferTx(account, recipient, asset, value)
	if err != nil {
		return e.finish(log, a, types.StateSettled, err, nil)
	}

	e.transition(log, a, types.StateSubmitting)
	start := time.Now()
	hash, err := e.gw.Send(ctx, tx)
	metrics.Since(e.metrics, "submit", start, map[string]string{"asset": asset.Symbol.String()})
	if err != nil {
		return e.finish(log, a, types.StateSettled, err, nil)
	}
	a.TxHash = hash
	log.Info("transaction submitted", map[string]any{"tx_hash": hash.Hex()})
	e.notifier.Notify(outcome.Notification{Level: outcome.LevelLoading, Message: msgProcessing})

	e.transition(log, a, types.StateAwaitingConfirmation)
	start = time.Now()
	receipt, err := e.gw.WaitReceipt(ctx, hash)
	metrics.Since(e.metrics, "confirm", start, map[string]string{"asset": asset.Symbol.String()})
	if err != nil {
		return e.finish(log, a, types.StateSettled, err, nil)
	}
	if !receipt.Succeeded() {
		err := types.NewError(types.ErrUnknownTransferFailure, fmt.Sprintf("transaction %s reverted in block %d", hash.Hex(), receipt.BlockNumber), nil)
		return e.finish(log, a, types.StateSettled, err, nil)
	}

	return e.finish(log, a, types.StateSettled, nil, req.OnSuccess)
}

// Revalidate re-enters the validation step after a wallet account or chain
// change. It runs under the same in-flight guard as Submit.
func (e *Executor) Revalidate(ctx context.Context) (common.Address, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return common.Address{}, types.NewError(types.ErrBusy, "payment in progress", nil)
	}
	defer e.inFlight.Store(false)

	e.setState(types.StateValidating)
	defer e.setState(types.StateIdle)
	e.log.Debug("revalidating wallet session", nil)

	account, err := clients.Connect(ctx, e.gw)
	if err != nil {
		return common.Address{}, err
	}
	if err := clients.EnsureChain(ctx, e.gw, e.cfg.Chain); err != nil {
		return common.Address{}, err
	}
	return account, nil
}

// funds reads the token's decimals and the account's holding. Decimals are
// read on every attempt so display and conversion agree.
func (e *Executor) funds(ctx context.Context, account common.Address, asset types.TokenDescriptor) (uint8, *big.Int, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if asset.IsNative() {
		held, err := e.gw.BalanceAt(ctx, account)
		return types.NativeDecimals, held, err
	}

	token := clients.NewERC20(e.gw, asset.Contract())
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return 0, nil, err
	}
	held, err := token.BalanceOf(ctx, account)
	if err != nil {
		return 0, nil, err
	}
	return decimals, held, nil
}

// transferTx builds a native value transfer or an ERC20 transfer call,
// chosen by the asset's standard.
func transferTx(from, to common.Address, asset types.TokenDescriptor, value *big.Int) (types.TxRequest, error) {
	switch asset.Standard {
	case types.TokenStandardNative:
		return types.TxRequest{From: from, To: to, Value: value}, nil
	case types.TokenStandardERC20:
		data, err := clients.EncodeTransfer(to, value)
		if err != nil {
			return types.TxRequest{}, types.NewError(types.ErrUnknownTransferFailure, "failed to encode transfer", err)
		}
		return types.TxRequest{From: from, To: asset.Contract(), Value: new(big.Int), Data: data}, nil
	default:
		return types.TxRequest{}, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("unsupported token standard %q", asset.Standard), nil)
	}
}

func (e *Executor) transition(log logger.Logger, a *types.PaymentAttempt, s types.State) {
	log.Debug("state transition", map[string]any{"from": a.State.String(), "state": s.String()})
	a.State = s
	e.setState(s)
}

func (e *Executor) setState(s types.State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// finish records the final state, reports the outcome and, for a success
// only, calls onSuccess.
func (e *Executor) finish(log logger.Logger, a *types.PaymentAttempt, final types.State, err error, onSuccess func()) Result {
	e.transition(log, a, final)
	a.Err = err
	a.Success = err == nil && final == types.StateSettled
	a.EndedAt = time.Now()

	o := e.classifier.Classify(err, a.Asset.Symbol)
	labels := map[string]string{"asset": a.Asset.Symbol.String(), "category": string(o.Category)}
	fields := map[string]any{
		"state":    final.String(),
		"category": o.Category,
		"duration": a.EndedAt.Sub(a.StartedAt).String(),
	}

	if a.Success {
		e.metrics.IncCounter(metrics.EventAttemptSucceeded, labels)
		log.Info("payment settled", fields)
	} else {
		e.metrics.IncCounter(metrics.EventAttemptFailed, labels)
		fields["code"] = o.Code
		fields["error"] = err
		switch o.Category {
		case outcome.CategoryUserRejected, outcome.CategoryWrongNetwork, outcome.CategoryInsufficientFunds:
			log.Warn("payment not completed", fields)
		default:
			log.Error("payment failed", fields)
		}
	}

	e.notifier.Notify(outcome.ForOutcome(o))
	if a.Success && onSuccess != nil {
		onSuccess()
	}

	return Result{Attempt: a, Outcome: o, Err: err}
}

func (e *Executor) rejectBusy(sym types.Symbol) Result {
	err := types.NewError(types.ErrBusy, "a payment is already in flight", nil)
	o := e.classifier.Classify(err, sym)

	e.metrics.IncCounter(metrics.EventAttemptRejected, map[string]string{"asset": sym.String(), "category": string(o.Category)})
	e.log.Warn("submit rejected while busy", map[string]any{"asset": sym, "state": e.State().String()})
	e.notifier.Notify(outcome.ForOutcome(o))

	return Result{Outcome: o, Err: err}
}
