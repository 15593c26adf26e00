package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docvault/docs"
	"docvault/internal/config"
	"docvault/internal/database/migration"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/otel"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		ephemeral bool
		migrate   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. With EMBED_WORKER=true the reindex worker, the storage
purger and the quota reconciler run in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, config.Load(), ephemeral, migrate)
		},
	}
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep all state in memory (local development)")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending database migrations on startup")
	return cmd
}

func runServe(ctx context.Context, cfg *config.AppConfig, ephemeral, migrate bool) error {
	a, err := newApp(ctx, cfg, ephemeral)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdownTracing, err := otel.Init(ctx, a.log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if migrate && a.db != nil {
		if _, err := migration.EnsureMigrated(ctx, a.db, a.log, cfg.Database.Host); err != nil {
			return err
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.BodyLimitBytes,
		DisableStartupMessage: true,
	})

	// RequestID first so every later middleware and handler sees the id.
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger())
	prom, err := middleware.NewPrometheusMiddleware(a.registry)
	if err != nil {
		return err
	}
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:         a.db,
		Documents:  a.docs,
		Quotas:     a.ledger,
		Objects:    a.objects,
		Gatherer:   a.registry,
		OpenAPI:    docs.OpenAPI,
		AdminToken: cfg.AdminToken,
		Logger:     a.log,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("event", "http_listening").Str("addr", ":"+cfg.Port).Send()
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(sctx)
	})
	if cfg.EmbedWorker || ephemeral {
		g.Go(func() error { return runBackground(ctx, a) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
