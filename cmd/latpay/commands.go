package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/vitwit/latpay/address"
	"github.com/vitwit/latpay/balance"
	"github.com/vitwit/latpay/types"
	"github.com/vitwit/latpay/utils"
)

var assetFlag = &cli.StringFlag{
	Name:    "asset",
	Aliases: []string{"a"},
	Usage:   "Asset to use (USDT, USDC or LAT)",
	Value:   string(types.SymbolUSDT),
}

type balanceOutput struct {
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Raw      string `json:"raw"`
	Decimals uint8  `json:"decimals"`
	Degraded bool   `json:"degraded"`
}

func toBalanceOutput(b balance.Balance) balanceOutput {
	raw := "0"
	if b.Raw != nil {
		raw = b.Raw.String()
	}
	return balanceOutput{
		Asset:    b.Asset.String(),
		Amount:   b.Amount.String(),
		Raw:      raw,
		Decimals: b.Decimals,
		Degraded: b.Degraded,
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "Show the connected account's balance of an asset",
		Flags: []cli.Flag{assetFlag},
		Action: func(c *cli.Context) error {
			s, err := openSession(c, "", decimal.Zero)
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.orch.SelectToken(c.Context, types.Symbol(c.String("asset")))
			if err != nil {
				return err
			}

			return render(c, toBalanceOutput(b), func() {
				fmt.Fprintf(c.App.Writer, "%s %s\n", b.String(), b.Asset)
			})
		},
	}
}

type payOutput struct {
	AttemptID string `json:"attempt_id,omitempty"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Value     string `json:"value,omitempty"`
	Recipient string `json:"recipient"`
	TxHash    string `json:"tx_hash,omitempty"`
	State     string `json:"state"`
	Success   bool   `json:"success"`
	Category  string `json:"category"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

func payCommand() *cli.Command {
	return &cli.Command{
		Name:  "pay",
		Usage: "Pay a plan amount to the configured recipient",
		Flags: []cli.Flag{
			assetFlag,
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "USD-equivalent amount to pay",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "plan",
				Usage: "Plan name recorded in logs",
				Value: "default",
			},
		},
		Action: func(c *cli.Context) error {
			amount, err := utils.ParseAmount(c.String("amount"))
			if err != nil {
				return err
			}

			s, err := openSession(c, c.String("plan"), amount)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.orch.SelectToken(c.Context, types.Symbol(c.String("asset"))); err != nil {
				return err
			}

			res := s.orch.Pay(c.Context)
			out := payOutput{
				Asset:     c.String("asset"),
				Amount:    amount.String(),
				Recipient: s.cfg.Recipient,
				State:     s.orch.State().String(),
				Category:  string(res.Outcome.Category),
				Code:      res.Outcome.Code,
				Message:   res.Outcome.Message,
			}
			if a := res.Attempt; a != nil {
				out.AttemptID = a.ID
				out.Asset = a.Asset.Symbol.String()
				out.Success = a.Success
				if a.Value != nil {
					out.Value = a.Value.String()
				}
				if a.TxHash != (common.Hash{}) {
					out.TxHash = a.TxHash.Hex()
				}
			}

			if err := render(c, out, func() {
				fmt.Fprintln(c.App.Writer, out.Message)
				if out.TxHash != "" {
					fmt.Fprintf(c.App.Writer, "  Tx: %s\n", out.TxHash)
				}
			}); err != nil {
				return err
			}

			if !out.Success {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Refresh an asset balance periodically, optionally serving metrics",
		Flags: []cli.Flag{
			assetFlag,
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Value:   30 * time.Second,
				Usage:   "How often to refresh the balance",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Listen address for /metrics (disabled when empty)",
				EnvVars: []string{"LATPAY_METRICS_ADDR"},
			},
		},
		Action: func(c *cli.Context) error {
			s, err := openSession(c, "", decimal.Zero)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr := c.String("metrics-addr"); addr != "" {
				srv := &http.Server{
					Addr:              addr,
					Handler:           promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						s.log.Error("metrics server stopped", map[string]any{"error": err})
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			sym := types.Symbol(c.String("asset"))
			ticker := time.NewTicker(c.Duration("interval"))
			defer ticker.Stop()

			for {
				b, err := s.orch.SelectToken(ctx, sym)
				if err != nil {
					return err
				}
				if err := render(c, toBalanceOutput(b), func() {
					fmt.Fprintf(c.App.Writer, "%s %s %s\n", time.Now().Format(time.RFC3339), b.String(), b.Asset)
				}); err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}

type addressOutput struct {
	Native string `json:"native"`
	Hex    string `json:"hex"`
}

func codecFor(c *cli.Context) (*address.Codec, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return address.NewCodec(cfg.AddressPrefix)
}

func toHexCommand() *cli.Command {
	return &cli.Command{
		Name:      "to-hex",
		Usage:     "Convert a native bech32 address to 0x hex",
		ArgsUsage: "NATIVE_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("native address is required")
			}
			codec, err := codecFor(c)
			if err != nil {
				return err
			}

			native := c.Args().Get(0)
			hex, err := codec.ToHex(native)
			if err != nil {
				return err
			}

			return render(c, addressOutput{Native: native, Hex: hex.Hex()}, func() {
				fmt.Fprintln(c.App.Writer, hex.Hex())
			})
		},
	}
}

func toNativeCommand() *cli.Command {
	return &cli.Command{
		Name:      "to-native",
		Usage:     "Convert a 0x hex address to the native bech32 form",
		ArgsUsage: "HEX_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("hex address is required")
			}
			codec, err := codecFor(c)
			if err != nil {
				return err
			}

			hex := c.Args().Get(0)
			native, err := codec.ToNative(hex)
			if err != nil {
				return err
			}

			return render(c, addressOutput{Native: native, Hex: utils.NormalizeAddress(hex)}, func() {
				fmt.Fprintln(c.App.Writer, native)
			})
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration as JSON",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return renderJSON(c, cfg)
		},
	}
}
