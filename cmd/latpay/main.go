package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "latpay",
		Usage: "Pay for a plan in USDT, USDC or LAT on PlatON",
		Description: `Drives the payment orchestrator against a JSON-RPC endpoint.

Without --private-key the endpoint must expose wallet methods
(eth_requestAccounts, wallet_switchEthereumChain, eth_sendTransaction).
With a key, transactions are signed locally and sent through a plain node.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Before: func(c *cli.Context) error {
			return loadEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			balanceCommand(),
			payCommand(),
			watchCommand(),
			{
				Name:  "address",
				Usage: "Convert between native and hex addresses",
				Subcommands: []*cli.Command{
					toHexCommand(),
					toNativeCommand(),
				},
			},
			configCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Wallet or node JSON-RPC endpoint (defaults to the chain's first RPC URL)",
				EnvVars: []string{"LATPAY_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Hex signing key; switches to local signing",
				EnvVars: []string{"LATPAY_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "JSON config file (defaults to PlatON mainnet)",
				EnvVars: []string{"LATPAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LATPAY_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Environment file to load before reading flags",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output (repeatable)",
			},
		},
	}
}

// loadEnv reads path into the environment. A missing default file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && path == ".env" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
