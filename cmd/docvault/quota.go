package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"docvault/internal/config"
)

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and change tenant quotas",
	}
	cmd.AddCommand(newQuotaShowCmd(), newQuotaSetCmd())
	return cmd
}

func newQuotaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tenant>",
		Short: "Show a tenant's usage against its limits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.Load(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.ledger.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tier:      %s\n", s.Tier)
			fmt.Fprintf(out, "storage:   %s of %s (%.2f%%)\n",
				humanize.IBytes(s.Storage.UsedBytes), humanize.IBytes(s.Storage.LimitBytes), s.Storage.Percentage)
			fmt.Fprintf(out, "documents: %d of %d (%.2f%%)\n",
				s.Documents.Count, s.Documents.Limit, s.Documents.Percentage)
			return nil
		},
	}
}

func newQuotaSetCmd() *cobra.Command {
	var (
		storageLimit  string
		documentLimit string
		tier          string
	)
	cmd := &cobra.Command{
		Use:   "set <tenant>",
		Short: "Change a tenant's limits and tier",
		Example: `  docvault quota set acme --storage 5GiB --documents 1000 --tier pro`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			bytes, docs, err := parseLimits(storageLimit, documentLimit)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.ledger.SetLimits(cmd.Context(), args[0], bytes, docs, tier)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d documents, tier %s\n",
				q.TenantID, humanize.IBytes(q.StorageLimitBytes), q.DocumentLimit, q.Tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&storageLimit, "storage", "", "storage limit, e.g. 500MB or 5GiB")
	cmd.Flags().StringVar(&documentLimit, "documents", "", "maximum number of active documents")
	cmd.Flags().StringVar(&tier, "tier", "", "plan tier label")
	_ = cmd.MarkFlagRequired("storage")
	_ = cmd.MarkFlagRequired("documents")
	_ = cmd.MarkFlagRequired("tier")
	return cmd
}

// parseLimits accepts human sizes ("5GiB") for storage and a plain count for documents.
func parseLimits(storage, documents string) (uint64, uint64, error) {
	bytes, err := humanize.ParseBytes(storage)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --storage %q: %w", storage, err)
	}
	docs, err := strconv.ParseUint(documents, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --documents %q: %w", documents, err)
	}
	return bytes, docs, nil
}
