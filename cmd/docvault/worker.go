package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docvault/internal/config"
)

func newWorkerCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the reindex worker, the storage purger and the quota reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, config.Load(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return runBackground(ctx, a) })
			if metricsAddr != "" {
				g.Go(func() error { return serveMetrics(ctx, a, metricsAddr) })
			}
			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address of the /metrics listener; empty disables it")
	return cmd
}

// runBackground runs every background loop until ctx is cancelled or one of them fails.
func runBackground(ctx context.Context, a *app) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.worker.Run(ctx) })
	g.Go(func() error { return a.purger.Run(ctx) })
	g.Go(func() error { return a.ledger.RunReconciler(ctx, a.cfg.Quota.ReconcileInterval) })
	a.log.Info().Str("event", "background_started").
		Int("reindex_workers", a.cfg.Queue.Workers).
		Dur("reconcile_interval", a.cfg.Quota.ReconcileInterval).
		Send()
	return g.Wait()
}

func serveMetrics(ctx context.Context, a *app, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
