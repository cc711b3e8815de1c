package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/rltrader/internal/application"
	"github.com/sawpanic/rltrader/internal/artifacts"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List trained model artifacts with size and checksum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, s *application.Services) error {
				lister, ok := s.Store.(artifacts.Lister)
				if !ok {
					return fmt.Errorf("artifact store %T cannot list models", s.Store)
				}
				entries, err := lister.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(entries)
			})
		},
	}
}
