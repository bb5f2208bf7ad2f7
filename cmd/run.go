package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odanko/outagebot/internal/app"
)

// newRunCmd creates the 'run' subcommand: the long-lived service with the
// Telegram bot, the poll loop and the ops HTTP server.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Starts the monitor service",
		Long: `Starts the full service: the Telegram bot accepting subscriptions, the
fixed-cadence schedule monitor, and the operational HTTP server with health
probes and Prometheus metrics. Runs until SIGINT/SIGTERM.`,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set OUTAGEBOT_TELEGRAM_TOKEN)")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run service: %w", err)
	}
	return nil
}
