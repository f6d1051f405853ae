package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ramtunguturi36/cvb/internal/logging"
	"github.com/ramtunguturi36/cvb/internal/repository"
	"github.com/ramtunguturi36/cvb/internal/service"
)

func createAdminCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long: `Create an admin account directly in the database.  Unlike the
create-admin HTTP route this needs no bootstrap key, only database access.

Example:
  cvbctl create-admin --email ops@example.com --password 's3cret!' --name Ops`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			log := logging.New(cfg.LogLevel)
			// Sessions are never issued here; the signer only satisfies NewAuth.
			auth := service.NewAuth(repository.NewUserRepo(db), service.NewSessions("", 0), cfg.BcryptCost, "", log)
			u, err := auth.CreateAdminDirect(cmd.Context(), email, password, name)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %d\n", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
