package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "docvault",
		Short: "Multi-tenant document storage service",
		Long: `docvault stores tenant documents in object storage, enforces per-tenant
storage and document quotas, and keeps the search index in step through a
reindex queue. Configuration comes from the environment (and .env).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				return godotenv.Overload(envFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment overrides from this file")

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newReconcileCmd(),
		newQuotaCmd(),
	)
	return root
}
