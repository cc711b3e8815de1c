package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sawpanic/rltrader/internal/application"
	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/signal"
)

func newSignalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal [symbol]",
		Short: "Query the trained agent for a BUY/HOLD/SELL signal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSignal,
	}
	cmd.Flags().AddFlagSet(symbolFlags())
	cmd.Flags().Int("horizon", 1, "Horizon in days (echoed, informational)")
	cmd.Flags().Int("position", 0, "Current position: -1 short, 0 flat, 1 long")
	cmd.Flags().Bool("demo", false, "Use a seeded synthetic state instead of live features")
	return cmd
}

func runSignal(cmd *cobra.Command, _ []string) error {
	symbol, err := requireSymbol(cmd)
	if err != nil {
		return err
	}
	horizon, _ := cmd.Flags().GetInt("horizon")
	position, _ := cmd.Flags().GetInt("position")

	return withServices(cmd, func(ctx context.Context, s *application.Services) error {
		resp, err := s.Signals.Signal(ctx, signal.Request{Symbol: symbol, Horizon: horizon, Position: position})
		if err != nil {
			return err
		}
		return printJSON(resp)
	})
}

func newPaperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "papertrade [symbol]",
		Aliases: []string{"paper"},
		Short:   "Replay recent days against the agent with a virtual account",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runPaper,
	}
	cmd.Flags().AddFlagSet(symbolFlags())
	cmd.Flags().IntP("days", "d", 5, "Number of most recent days to simulate")
	return cmd
}

func runPaper(cmd *cobra.Command, _ []string) error {
	symbol, err := requireSymbol(cmd)
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")

	return withServices(cmd, func(ctx context.Context, s *application.Services) error {
		res, err := s.Paper.Run(ctx, papertrade.Request{Symbol: symbol, Days: days})
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func newRiskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk [symbol]",
		Short: "Annualised volatility, max drawdown and VaR(95) for a symbol",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRisk,
	}
	cmd.Flags().AddFlagSet(symbolFlags())
	return cmd
}

func runRisk(cmd *cobra.Command, _ []string) error {
	symbol, err := requireSymbol(cmd)
	if err != nil {
		return err
	}
	return withServices(cmd, func(ctx context.Context, s *application.Services) error {
		m, err := s.Analytics.Risk(ctx, symbol)
		if err != nil {
			return err
		}
		return printJSON(m)
	})
}

func newIndicatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicators [symbol]",
		Short: "RSI, EMA, MACD and Bollinger bands over the last year",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIndicators,
	}
	cmd.Flags().AddFlagSet(symbolFlags())
	cmd.Flags().Int("limit", 20, "number of most recent rows to print")
	return cmd
}

func runIndicators(cmd *cobra.Command, _ []string) error {
	symbol, err := requireSymbol(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	return withServices(cmd, func(ctx context.Context, s *application.Services) error {
		rows, err := s.Analytics.Indicators(ctx, symbol, limit)
		if err != nil {
			return err
		}
		return printJSON(rows)
	})
}
