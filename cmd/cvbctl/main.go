// Command cvbctl is the operator tool: schema migration, admin accounts
// and manual outbox relay passes.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ramtunguturi36/cvb/internal/config"
	"github.com/ramtunguturi36/cvb/internal/database"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cvbctl",
		Short:         "Operator commands for the video access backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(relayOnceCmd())
	return rootCmd
}

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openDB connects with the DB_* settings.
func openDB(ctx context.Context) (config.Config, *sql.DB, error) {
	cfg := config.LoadDatabase()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}
