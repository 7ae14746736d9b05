package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/vitwit/latpay"
	"github.com/vitwit/latpay/clients"
	"github.com/vitwit/latpay/logger"
	"github.com/vitwit/latpay/metrics"
	"github.com/vitwit/latpay/outcome"
	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
)

// setting returns the flag value, falling back to an environment variable
// loaded after flags were parsed.
func setting(c *cli.Context, name, env string) string {
	if v := c.String(name); v != "" {
		return v
	}
	return os.Getenv(env)
}

func loadConfig(c *cli.Context) (*types.Config, error) {
	path := setting(c, "config", "LATPAY_CONFIG")
	if path == "" {
		cfg := types.PlatONMainnet()
		if lvl := setting(c, "log-level", "LATPAY_LOG_LEVEL"); lvl != "" {
			cfg.LogLevel = lvl
		}
		return &cfg, utils.ValidateConfig(&cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := utils.ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if lvl := setting(c, "log-level", "LATPAY_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func dialGateway(ctx context.Context, c *cli.Context, cfg *types.Config) (clients.Gateway, error) {
	url := setting(c, "rpc-url", "LATPAY_RPC_URL")
	if url == "" && len(cfg.Chain.RPCUrls) > 0 {
		url = cfg.Chain.RPCUrls[0]
	}

	if key := setting(c, "private-key", "LATPAY_PRIVATE_KEY"); key != "" {
		return clients.DialKeyed(ctx, url, key, cfg.ReceiptPollInterval)
	}
	return clients.DialWallet(ctx, url, cfg.ReceiptPollInterval)
}

// stderrNotifier prints user notifications the way a toast would show them.
func stderrNotifier(w io.Writer) outcome.Notifier {
	return outcome.NotifierFunc(func(n outcome.Notification) {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	})
}

type session struct {
	cfg      *types.Config
	orch     *latpay.Orchestrator
	log      logger.Logger
	registry *prometheus.Registry
}

func (s *session) Close() {
	s.orch.Close()
	if z, ok := s.log.(interface{ Sync() error }); ok {
		_ = z.Sync()
	}
}

// openSession wires config, logger, metrics and gateway into an orchestrator
// for a plan of amount.
func openSession(c *cli.Context, plan string, amount decimal.Decimal) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	gw, err := dialGateway(c.Context, c, cfg)
	if err != nil {
		return nil, err
	}

	collab := types.Collaborator{
		PlanName: plan,
		Amount:   amount,
		OnSuccess: func() {
			log.Info("plan paid", map[string]any{"plan": plan})
		},
	}

	orch, err := latpay.New(*cfg, collab, gw,
		latpay.WithLogger(log),
		latpay.WithMetrics(rec),
		latpay.WithNotifier(stderrNotifier(c.App.ErrWriter)),
	)
	if err != nil {
		gw.Close()
		return nil, err
	}

	return &session{cfg: cfg, orch: orch, log: log, registry: reg}, nil
}
