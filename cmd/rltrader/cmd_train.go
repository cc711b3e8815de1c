package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/rltrader/internal/application"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train [symbol]",
		Short: "Train a DQN agent for a symbol and save its artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTrain,
	}
	cmd.Flags().AddFlagSet(symbolFlags())
	cmd.Flags().IntP("episodes", "e", 0, "Training episodes (0 uses the config value)")
	cmd.Flags().String("period", "", "History lookback: 1mo, 3mo, 6mo, 1y, 2y, 5y")
	cmd.Flags().Bool("progress", true, "Print a step progress bar to stderr")
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	symbol, err := requireSymbol(cmd)
	if err != nil {
		return err
	}
	episodes, _ := cmd.Flags().GetInt("episodes")
	period, _ := cmd.Flags().GetString("period")
	progress, _ := cmd.Flags().GetBool("progress")

	return withServices(cmd, func(ctx context.Context, s *application.Services) error {
		if progress {
			s.Training.WithProgress(os.Stderr)
		}
		res, err := s.Training.Train(ctx, application.TrainRequest{Symbol: symbol, Episodes: episodes, Period: period})
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}
