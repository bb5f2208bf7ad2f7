package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odanko/outagebot/internal/address"
	"github.com/odanko/outagebot/internal/clock/system"
	"github.com/odanko/outagebot/internal/dtek"
	"github.com/odanko/outagebot/internal/logging"
	"github.com/odanko/outagebot/internal/store"
	"github.com/odanko/outagebot/internal/telegram"
)

// newCheckCmd creates the 'check' subcommand: a one-shot schedule probe for
// an address, printed to stdout. Needs no Telegram credentials.
func newCheckCmd() *cobra.Command {
	var street, house string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetches the current schedule for one address and prints it",
		Long: `Performs a single browser-session fetch against the portal for the given
street and house and prints the parsed schedule. Useful for verifying
connectivity and address spelling before subscribing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckCommand(cmd, street, house)
		},
	}

	cmd.Flags().StringVar(&street, "street", "", "street name, e.g. 'вул. Хрещатик'")
	cmd.Flags().StringVar(&house, "house", "", "house number, e.g. '12'")
	_ = cmd.MarkFlagRequired("street")
	_ = cmd.MarkFlagRequired("house")

	return cmd
}

func runCheckCommand(cmd *cobra.Command, street, house string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr, err := address.New(street, house)
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client := dtek.New(dtek.Config{
		BaseURL:      cfg.Fetch.BaseURL,
		Headless:     cfg.Fetch.Headless,
		UserAgent:    cfg.Fetch.UserAgent,
		NavTimeout:   time.Duration(cfg.Fetch.NavTimeoutSec) * time.Second,
		SettleDelay:  time.Duration(cfg.Fetch.SettleMs) * time.Millisecond,
		FetchTimeout: time.Duration(cfg.Fetch.FetchTimeout) * time.Second,
	}, system.Clock{}, logger.Named("dtek"))
	defer client.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	payload, err := client.FetchSchedule(ctx, addr.Street)
	if err != nil {
		return fmt.Errorf("fetch schedule: %w", err)
	}

	sub := store.Subscription{Address: addr}
	fmt.Fprintln(cmd.OutOrStdout(), telegram.MessageFormatter{}.FormatChange(sub, payload))
	return nil
}
