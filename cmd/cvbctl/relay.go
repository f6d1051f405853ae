package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ramtunguturi36/cvb/internal/app"
	"github.com/ramtunguturi36/cvb/internal/logging"
)

func relayOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay-once",
		Short: "Run one outbox relay pass and print what happened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			log := logging.New(cfg.LogLevel)
			mailer := app.Mailer(cfg, log)
			relay := app.Relay(db, cfg, app.Dispatcher(cfg, mailer, log), log)

			stats, err := relay.RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d sent=%d retried=%d dead=%d\n",
				stats.Claimed, stats.Sent, stats.Retried, stats.Dead)
			return nil
		},
	}
}
