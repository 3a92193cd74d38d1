package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/bundloor/pkg/api"
	"github.com/ethpandaops/bundloor/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bundle HTTP API",
	Long: `Serves the bundle API: builder catalog, health sweeps, dry runs, live
submissions, a server-sent event stream of submission outcomes and
Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := setupApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.API.TokenKey == "" {
			logger.Warn("No API token key configured, live submissions are unauthenticated")
		}

		srv := api.NewServer(cfg.API, a.manager, a.metrics, logger)
		srv.Start()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Info("Shutting down...")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return srv.Stop(shutdownCtx)
	},
}

func init() {
	defaults := config.DefaultConfig().API

	serveCmd.Flags().String("api-host", defaults.Host, "HTTP API listen host")
	serveCmd.Flags().Int("api-port", defaults.Port, "HTTP API listen port")
	serveCmd.Flags().String("api-user-header", defaults.UserHeader, "Header carrying the authenticated user for /auth/token")
	serveCmd.Flags().String("api-token-key", "", "HS256 key for API tokens; enables auth on live submissions")

	if err := v.BindPFlags(serveCmd.Flags()); err != nil {
		logrus.WithError(err).Fatal("Failed to bind flags")
	}

	rootCmd.AddCommand(serveCmd)
}
