package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/rltrader/internal/application"
	"github.com/sawpanic/rltrader/internal/config"
	rlog "github.com/sawpanic/rltrader/internal/log"
)

const (
	appName = "rltrader"
	version = "v0.4.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Reinforcement-learning trade signals for equities",
		Version: version,
		Long: `rltrader trains a deep Q-learning agent per symbol on daily bars and
serves its greedy decisions as BUY/HOLD/SELL signals, with a paper-trading
simulator and basic risk analytics on top.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			rlog.Setup(level, os.Stderr)
			config.LoadDotEnv()
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to YAML config")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		newTrainCmd(),
		newSignalCmd(),
		newPaperCmd(),
		newIndicatorsCmd(),
		newRiskCmd(),
		newServeCmd(),
		newModelsCmd(),
	)
	return rootCmd
}

// symbolFlags is shared by every per-symbol command.
func symbolFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("symbol", pflag.ContinueOnError)
	fs.StringP("symbol", "s", "", "Ticker symbol, e.g. AAPL")
	return fs
}

func requireSymbol(cmd *cobra.Command) (string, error) {
	symbol, _ := cmd.Flags().GetString("symbol")
	if symbol == "" && cmd.Flags().NArg() > 0 {
		symbol = cmd.Flags().Arg(0)
	}
	if symbol == "" {
		return "", fmt.Errorf("a symbol is required (--symbol or first argument)")
	}
	return symbol, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Lookup("demo") != nil {
		if demo, _ := cmd.Flags().GetBool("demo"); demo {
			cfg.Signal.DemoMode = true
		}
	}
	return cfg, nil
}

// withServices loads config, builds the service tree and tears it down
// after fn returns.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, s *application.Services) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := application.NewServices(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing services")
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, svc)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
