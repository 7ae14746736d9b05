// Package latpay orchestrates stable-token and native-currency payments on a
// single EVM-compatible chain through a connected wallet.
package latpay

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/latpay/address"
	"github.com/vitwit/latpay/balance"
	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/logger"
	"github.com/vitwit/latpay/metrics"
	"github.com/vitwit/latpay/outcome"
	"github.com/vitwit/latpay/settlement"
	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
)

// Orchestrator is the payment component: it tracks the selected asset's
// balance and runs payment attempts for the collaborator's plan.
type Orchestrator struct {
	cfg          types.Config
	collaborator types.Collaborator
	gw           clients.Gateway
	codec        *address.Codec

	logger   logger.Logger
	metrics  metrics.Recorder
	notifier outcome.Notifier
	timeout  time.Duration

	tracker  *balance.Tracker
	executor *settlement.Executor

	mu       sync.Mutex
	selected types.Symbol
}

// New validates cfg and builds an orchestrator over gw. The first configured
// asset starts selected; no chain call is made until SelectToken or Pay.
func New(cfg types.Config, collaborator types.Collaborator, gw clients.Gateway, opts ...Option) (*Orchestrator, error) {
	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := utils.ValidateAmount(collaborator.Amount); err != nil {
		return nil, types.NewError(types.ErrInvalidConfig, "invalid plan amount", err)
	}

	codec, err := address.NewCodec(cfg.AddressPrefix)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:          cfg,
		collaborator: collaborator,
		gw:           gw,
		codec:        codec,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		notifier:     outcome.NoopNotifier{},
		timeout:      cfg.ReadTimeout,
		selected:     cfg.Assets[0].Symbol,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.tracker = balance.NewTracker(&o.cfg, gw, balance.Options{
		Logger:   o.logger,
		Metrics:  o.metrics,
		Notifier: o.notifier,
		Timeout:  o.timeout,
	})
	o.executor = settlement.NewExecutor(&o.cfg, gw, codec, settlement.Options{
		Logger:   o.logger,
		Metrics:  o.metrics,
		Notifier: o.notifier,
		Timeout:  o.timeout,
	})

	return o, nil
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() types.Config {
	return o.cfg
}

// Selected returns the asset the next payment will use.
func (o *Orchestrator) Selected() types.Symbol {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

// SelectToken switches the payment asset and resolves its balance. A result
// overtaken by a later selection is not applied.
func (o *Orchestrator) SelectToken(ctx context.Context, sym types.Symbol) (balance.Balance, error) {
	asset, ok := o.cfg.Asset(sym)
	if !ok {
		return balance.Balance{}, types.NewError(types.ErrInvalidConfig, "asset "+sym.String()+" is not payable", nil)
	}

	o.mu.Lock()
	o.selected = asset.Symbol
	o.mu.Unlock()

	b, applied, err := o.tracker.Select(ctx, asset.Symbol)
	if err != nil {
		return balance.Balance{}, err
	}
	if !applied {
		_, b = o.tracker.Current()
	}
	return b, nil
}

// Balance returns the displayed balance of the selected asset, which is the
// zero value until it has been resolved.
func (o *Orchestrator) Balance() balance.Balance {
	sym, b := o.tracker.Current()
	if sym != o.Selected() {
		return balance.Balance{}
	}
	return b
}

// CanSubmit reports whether the pay action should be enabled: nothing is in
// flight and the displayed balance covers the plan amount.
func (o *Orchestrator) CanSubmit() bool {
	if o.executor.Busy() || !o.executor.State().Accepting() {
		return false
	}
	b := o.Balance()
	return b.Raw != nil && !b.Degraded && b.Covers(o.collaborator.Amount)
}

// Busy reports whether a payment attempt is in flight.
func (o *Orchestrator) Busy() bool {
	return o.executor.Busy()
}

// State returns the payment state machine's current state.
func (o *Orchestrator) State() types.State {
	return o.executor.State()
}

// Pay runs one payment of the plan amount in the selected asset.
func (o *Orchestrator) Pay(ctx context.Context) settlement.Result {
	sym := o.Selected()
	res := o.executor.Submit(ctx, settlement.Request{
		Asset:     sym,
		Amount:    o.collaborator.Amount,
		OnSuccess: o.collaborator.OnSuccess,
	})

	if res.Attempt != nil && res.Attempt.TxHash != (common.Hash{}) {
		o.tracker.Refresh(ctx)
	}
	return res
}

// Back hands control back to the collaborator unless a payment is in
// flight. It reports whether onBack was called.
func (o *Orchestrator) Back() bool {
	if o.executor.Busy() {
		o.logger.Debug("back ignored while payment in flight", nil)
		return false
	}
	if o.collaborator.OnBack != nil {
		o.collaborator.OnBack()
	}
	return true
}

// OnAccountsChanged handles the wallet's account change event.
func (o *Orchestrator) OnAccountsChanged(ctx context.Context, accounts []common.Address) error {
	fields := map[string]any{"accounts": len(accounts)}
	if len(accounts) > 0 {
		fields["account"] = accounts[0].Hex()
	}
	o.logger.Info("wallet accounts changed", fields)
	return o.revalidate(ctx)
}

// OnChainChanged handles the wallet's chain change event.
func (o *Orchestrator) OnChainChanged(ctx context.Context, chainID *big.Int) error {
	o.logger.Info("wallet chain changed", map[string]any{
		"chain_id": chainID.String(),
		"expected": o.cfg.Chain.ID,
	})
	return o.revalidate(ctx)
}

// revalidate re-enters validation and, when it passes, refreshes the
// displayed balance. While a payment is in flight the event is ignored.
func (o *Orchestrator) revalidate(ctx context.Context) error {
	account, err := o.executor.Revalidate(ctx)
	if types.IsCode(err, types.ErrBusy) {
		o.logger.Debug("wallet event deferred to in-flight payment", nil)
		return err
	}
	if err != nil {
		oc := outcome.NewClassifier(o.cfg.Chain.Name).Classify(err, o.Selected())
		o.logger.Warn("wallet session invalid", map[string]any{"category": oc.Category, "error": err})
		o.notifier.Notify(outcome.Notification{Level: outcome.LevelWarning, Category: oc.Category, Message: oc.Message})
		return err
	}

	o.logger.Debug("wallet session valid", map[string]any{"account": account.Hex()})
	o.tracker.Refresh(ctx)
	return nil
}

// Recipient returns the payee in native and hex form.
func (o *Orchestrator) Recipient() (string, common.Address, error) {
	hex, err := o.codec.ToHex(o.cfg.Recipient)
	if err != nil {
		return "", common.Address{}, err
	}
	return o.cfg.Recipient, hex, nil
}

// Close releases the gateway.
func (o *Orchestrator) Close() {
	if o.gw != nil {
		o.gw.Close()
	}
}

// Version information
const Version = "1.0.0"

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version": Version,
		"chain":           types.PlatONChainID,
		"supported_standards": []string{
			string(types.TokenStandardERC20), string(types.TokenStandardNative),
		},
	}
}
