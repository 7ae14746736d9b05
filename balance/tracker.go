package balance

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/metrics"
	"github.com/vitwit/latpay/outcome"
	"github.com/vitwit/latpay/types"
)

// Tracker holds the balance shown for the currently selected asset. Each
// selection bumps a generation; a resolution that lands after a newer
// selection is dropped.
type Tracker struct {
	cfg        *types.Config
	gw         clients.Gateway
	resolver   *Resolver
	classifier *outcome.Classifier

	mu       sync.Mutex
	gen      uint64
	selected types.TokenDescriptor
	current  Balance
}

func NewTracker(cfg *types.Config, gw clients.Gateway, opts Options) *Tracker {
	return &Tracker{
		cfg:        cfg,
		gw:         gw,
		resolver:   NewResolver(gw, opts),
		classifier: outcome.NewClassifier(cfg.Chain.Name),
	}
}

// Select makes sym the current asset and resolves its balance. The returned
// bool is false when a newer selection won the race and the result was
// discarded.
func (t *Tracker) Select(ctx context.Context, sym types.Symbol) (Balance, bool, error) {
	asset, ok := t.cfg.Asset(sym)
	if !ok {
		return Balance{}, false, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("asset %s is not payable", sym), nil)
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.selected = asset
	t.current = Balance{}
	t.mu.Unlock()

	b, applied := t.resolve(ctx, gen, asset)
	return b, applied, nil
}

// Refresh re-resolves the selected asset. It is a no-op before the first
// selection.
func (t *Tracker) Refresh(ctx context.Context) (Balance, bool) {
	t.mu.Lock()
	if t.selected.Symbol == "" {
		t.mu.Unlock()
		return Balance{}, false
	}
	t.gen++
	gen := t.gen
	asset := t.selected
	t.mu.Unlock()

	return t.resolve(ctx, gen, asset)
}

// Current returns the selected asset and its last applied balance.
func (t *Tracker) Current() (types.Symbol, Balance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected.Symbol, t.current
}

func (t *Tracker) resolve(ctx context.Context, gen uint64, asset types.TokenDescriptor) (Balance, bool) {
	b := t.lookup(ctx, asset)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		t.resolver.opts.Metrics.IncCounter(metrics.EventBalanceStale, map[string]string{"asset": asset.Symbol.String()})
		t.resolver.opts.Logger.Debug("discarding stale balance", map[string]any{
			"asset":      asset.Symbol,
			"generation": gen,
			"latest":     t.gen,
		})
		return b, false
	}
	t.current = b
	return b, true
}

// lookup connects, checks the network and reads the balance. A wrong
// network stops before any balance call.
func (t *Tracker) lookup(ctx context.Context, asset types.TokenDescriptor) Balance {
	account, err := clients.Connect(ctx, t.gw)
	if err != nil {
		return t.sessionFailure(asset, err)
	}
	if err := clients.EnsureChain(ctx, t.gw, t.cfg.Chain); err != nil {
		return t.sessionFailure(asset, err)
	}
	return t.resolver.Resolve(ctx, account, asset)
}

func (t *Tracker) sessionFailure(asset types.TokenDescriptor, err error) Balance {
	o := t.classifier.Classify(err, asset.Symbol)
	msg := o.Message
	if o.Category == outcome.CategoryFailed {
		msg = msgNetwork
	}
	t.resolver.warn(asset, err, msg)
	return zero(asset)
}
