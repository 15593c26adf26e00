package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"docvault/internal/config"
	"docvault/internal/quota"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [tenant]",
		Short: "Recompute quota counters from the active documents",
		Long: `Recompute the storage and document counters of one tenant, or of every
tenant when none is given. Safe to run against live traffic.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.Load(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var results []quota.ReconcileResult
			if len(args) == 1 {
				res, err := a.ledger.Reconcile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results = append(results, res)
			} else {
				results, err = a.ledger.ReconcileAll(cmd.Context())
				if err != nil {
					return err
				}
			}
			return printReconcile(cmd.OutOrStdout(), results)
		},
	}
}

func printReconcile(w io.Writer, results []quota.ReconcileResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tSTORAGE BEFORE\tSTORAGE AFTER\tDOCS BEFORE\tDOCS AFTER\tDRIFT")
	for _, r := range results {
		drift := "-"
		if r.Drifted() {
			drift = "fixed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.TenantID,
			humanize.IBytes(r.Before.StorageUsedBytes),
			humanize.IBytes(r.After.StorageUsedBytes),
			r.Before.DocumentCount,
			r.After.DocumentCount,
			drift,
		)
	}
	return tw.Flush()
}
