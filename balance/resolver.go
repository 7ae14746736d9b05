// Package balance resolves the connected account's holdings of a payable
// asset for display.
package balance

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/logger"
	"github.com/vitwit/latpay/metrics"
	"github.com/vitwit/latpay/outcome"
	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
)

const (
	msgInvalidContract = "Unable to fetch token balance, please confirm the contract address."
	msgNetwork         = "Unable to connect wallet or network error."
)

// Balance is a display-ready holding. Amount is never negative.
type Balance struct {
	Asset    types.Symbol
	Raw      *big.Int
	Decimals uint8
	Amount   decimal.Decimal

	// Set when resolution failed and the zero value is shown instead.
	Degraded bool
}

// Covers reports whether the balance is at least amount.
func (b Balance) Covers(amount decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(amount)
}

// String renders the amount with two fractional digits.
func (b Balance) String() string {
	return b.Amount.StringFixed(2)
}

// Options configures a Resolver or Tracker. Zero fields get no-op defaults.
type Options struct {
	Logger   logger.Logger
	Metrics  metrics.Recorder
	Notifier outcome.Notifier

	// Bound on each resolution; zero means none.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.NoopLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoopRecorder{}
	}
	if o.Notifier == nil {
		o.Notifier = outcome.NoopNotifier{}
	}
	return o
}

// Resolver reads balances through a gateway. It never fails: any error
// degrades to a zero balance and a warning.
type Resolver struct {
	gw   clients.Gateway
	opts Options
}

func NewResolver(gw clients.Gateway, opts Options) *Resolver {
	return &Resolver{gw: gw, opts: opts.withDefaults()}
}

// Resolve returns account's balance of asset.
func (r *Resolver) Resolve(ctx context.Context, account common.Address, asset types.TokenDescriptor) Balance {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	labels := map[string]string{"asset": asset.Symbol.String()}
	defer metrics.Since(r.opts.Metrics, "resolve_balance", start, labels)

	var (
		raw      *big.Int
		decimals uint8
		err      error
	)
	if asset.IsNative() {
		decimals = types.NativeDecimals
		raw, err = r.gw.BalanceAt(ctx, account)
	} else {
		raw, decimals, err = r.tokenBalance(ctx, account, asset)
	}
	if err != nil {
		return r.Degrade(asset, err)
	}

	b := Balance{
		Asset:    asset.Symbol,
		Raw:      raw,
		Decimals: decimals,
		Amount:   utils.FromSmallestUnit(raw, decimals),
	}
	if raw.Sign() < 0 {
		b.Raw = new(big.Int)
	}

	r.opts.Metrics.IncCounter(metrics.EventBalanceResolved, labels)
	r.opts.Logger.Debug("balance resolved", map[string]any{
		"asset":    asset.Symbol,
		"account":  account.Hex(),
		"decimals": decimals,
		"balance":  b.String(),
	})
	return b
}

func (r *Resolver) tokenBalance(ctx context.Context, account common.Address, asset types.TokenDescriptor) (*big.Int, uint8, error) {
	token := clients.NewERC20(r.gw, asset.Contract())
	if err := token.EnsureDeployed(ctx); err != nil {
		return nil, 0, err
	}

	symbol, err := token.Symbol(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !strings.EqualFold(symbol, asset.Symbol.String()) {
		r.opts.Logger.Warn("token symbol differs from configuration", map[string]any{
			"asset":    asset.Symbol,
			"contract": asset.Address,
			"symbol":   symbol,
		})
	}

	var (
		decimals uint8
		raw      *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		decimals, err = token.Decimals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		raw, err = token.BalanceOf(gctx, account)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return raw, decimals, nil
}

// Degrade reports err as a warning and returns the zero balance for asset.
func (r *Resolver) Degrade(asset types.TokenDescriptor, err error) Balance {
	msg := msgNetwork
	if types.IsCode(err, types.ErrInvalidContract) {
		msg = msgInvalidContract
	}
	r.warn(asset, err, msg)
	return zero(asset)
}

func (r *Resolver) warn(asset types.TokenDescriptor, err error, msg string) {
	r.opts.Metrics.IncCounter(metrics.EventBalanceDegraded, map[string]string{
		"asset":    asset.Symbol.String(),
		"category": types.CodeOf(err),
	})
	r.opts.Logger.Warn("balance unavailable", map[string]any{
		"asset": asset.Symbol,
		"code":  types.CodeOf(err),
		"error": err,
	})
	r.opts.Notifier.Notify(outcome.Notification{
		Level:   outcome.LevelWarning,
		Message: msg,
	})
}

func zero(asset types.TokenDescriptor) Balance {
	b := Balance{
		Asset:    asset.Symbol,
		Raw:      new(big.Int),
		Amount:   decimal.Zero,
		Degraded: true,
	}
	if asset.IsNative() {
		b.Decimals = types.NativeDecimals
	}
	return b
}
