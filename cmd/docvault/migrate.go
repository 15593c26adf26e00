package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logging.New(cfg.Log)

			db, err := database.NewPostgres(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := migration.EnsureMigrated(cmd.Context(), db, log, cfg.Database.Host)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration step(s) applied\n", n)
			return nil
		},
	}
}
