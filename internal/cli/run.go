package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/classline/classline/internal/app"
	"github.com/classline/classline/internal/config"
	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/metrics"
	"github.com/classline/classline/internal/observability"
)

func newRunCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, cmd.Root().Version)
			if err != nil {
				logging.Warn().Err(err).Msg("sentry init failed")
			}
			defer flush()

			engine, err := app.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var metricsServer *http.Server
			if cfg.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
				go func() {
					if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Warn().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics server failed")
					}
				}()
			}

			engine.Start(ctx)
			logging.Info().Str("server", cfg.Server.BaseURL).Msg("engine running")

			<-ctx.Done()
			logging.Info().Msg("shutting down")

			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				_ = metricsServer.Shutdown(shutdownCtx)
				cancel()
			}
			engine.Close()
			return nil
		},
	}
}
