package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/rltrader/internal/application"
	httpapi "github.com/sawpanic/rltrader/internal/interfaces/http"
	"github.com/sawpanic/rltrader/internal/interfaces/http/handlers"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves /trade-signal, /paper-trade, /history/{symbol}, /risk/{symbol}, /health and /metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "Listen host (overrides config)")
	cmd.Flags().Int("port", 0, "Listen port (overrides config and HTTP_PORT)")
	cmd.Flags().Bool("demo", false, "Serve signals from seeded synthetic states")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withServices(cmd, func(ctx context.Context, s *application.Services) error {
		cfg := s.Config.Server
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Port = port
		}

		deps := handlers.Deps{
			Signals:    s.Signals,
			Paper:      s.Paper,
			Analytics:  s.Analytics,
			DB:         s.DB.Health(),
			DBEnabled:  s.DB.IsEnabled(),
			Version:    version,
			DemoMode:   s.Config.Signal.DemoMode,
			DataSource: s.Config.Data.Source,
		}
		if b, ok := s.Bars.(handlers.BreakerState); ok {
			deps.Breaker = b
		}

		srvCfg := httpapi.DefaultServerConfig()
		srvCfg.Host = cfg.Host
		srvCfg.Port = cfg.Port
		if cfg.RequestTimeout > 0 {
			srvCfg.RequestTimeout = cfg.RequestTimeout
		}
		server := httpapi.NewServer(srvCfg, handlers.NewHandlers(deps), s.Metrics)

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
			return err
		}
		log.Info().Msg("Server stopped")
		return nil
	})
}
