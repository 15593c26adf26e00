package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// Deps are the collaborators the HTTP layer is wired with. Only Documents is required.
type Deps struct {
	DB        *sql.DB
	Documents service.DocumentService
	Quotas    QuotaAdmin
	// Objects serves signed grants when the memory storage driver is active.
	Objects *storage.MemoryBackend
	// Gatherer exposes /metrics when set.
	Gatherer prometheus.Gatherer
	// OpenAPI is served at /openapi.yaml when set.
	OpenAPI []byte
	// AdminToken is the bearer token required by /admin. Empty closes the group.
	AdminToken string
	Logger     zerolog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parse, call the service, render.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Use(withLogger(d.Logger))

	if len(d.OpenAPI) > 0 {
		app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, "application/yaml")
			return c.Send(d.OpenAPI)
		})
	}

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.DB != nil {
		app.Get("/health", HealthCheck(d.DB))
	}
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents", middleware.Tenant())
	docs.Get("/", ListDocuments(d.Documents))
	docs.Post("/", UploadDocument(d.Documents))
	docs.Post("/uploads", PrepareUpload(d.Documents))
	docs.Post("/uploads/:id/commit", CommitUpload(d.Documents))
	docs.Get("/:id", GetDocument(d.Documents))
	docs.Patch("/:id", RenameDocument(d.Documents))
	docs.Delete("/:id", DeleteDocument(d.Documents))
	docs.Put("/:id/content", ReplaceContent(d.Documents))
	docs.Get("/:id/content", DownloadContent(d.Documents))
	docs.Get("/:id/download-url", DownloadURL(d.Documents))
	docs.Post("/:id/trash", TrashDocument(d.Documents))
	docs.Post("/:id/restore", RestoreDocument(d.Documents))

	app.Get("/quota", middleware.Tenant(), QuotaSummary(d.Documents))

	admin := app.Group("/admin", middleware.OperatorToken(d.AdminToken))
	admin.Get("/queue", QueueStats(d.Documents))
	if d.Quotas != nil {
		admin.Put("/tenants/:tenant/quota", SetTenantQuota(d.Quotas))
		admin.Post("/tenants/:tenant/reconcile", ReconcileTenant(d.Quotas))
	}

	if d.Objects != nil {
		app.Put("/objects/*", PutSignedObject(d.Objects))
		app.Get("/objects/*", GetSignedObject(d.Objects))
	}
}

// withLogger puts a request-scoped logger into the user context so errors rendered
// deep in a handler are logged with their request id.
func withLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		l := log.With().Str("request_id", requestIDFromCtx(c)).Logger()
		c.SetUserContext(l.WithContext(c.UserContext()))
		return c.Next()
	}
}
