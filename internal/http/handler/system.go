package handler

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/model"
	"docvault/internal/quota"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// QuotaAdmin is the operator surface of the quota ledger.
type QuotaAdmin interface {
	SetLimits(ctx context.Context, tenantID string, storageLimit, documentLimit uint64, tier string) (*model.TenantQuota, error)
	Reconcile(ctx context.Context, tenantID string) (quota.ReconcileResult, error)
}

var _ QuotaAdmin = (*quota.Ledger)(nil)

// HealthCheck handles GET /health: checks DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe handles GET /healthz.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

type queueStatsResponse struct {
	model.QueueStats
	Depth int `json:"depth"`
}

// QueueStats handles GET /admin/queue.
func QueueStats(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.QueueStats(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(queueStatsResponse{QueueStats: s, Depth: s.Depth()})
	}
}

type setQuotaRequest struct {
	StorageLimitBytes uint64 `json:"storage_limit_bytes"`
	DocumentLimit     uint64 `json:"document_limit"`
	Tier              string `json:"tier"`
}

// SetTenantQuota handles PUT /admin/tenants/:tenant/quota.
func SetTenantQuota(q QuotaAdmin) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req setQuotaRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.Tier == "" {
			return writeError(c, fiber.StatusBadRequest, "TIER_REQUIRED", "tier is required")
		}
		updated, err := q.SetLimits(c.UserContext(), c.Params("tenant"), req.StorageLimitBytes, req.DocumentLimit, req.Tier)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(updated)
	}
}

type reconcileResponse struct {
	TenantID string            `json:"tenant_id"`
	Drifted  bool              `json:"drifted"`
	Before   model.TenantQuota `json:"before"`
	After    model.TenantQuota `json:"after"`
}

// ReconcileTenant handles POST /admin/tenants/:tenant/reconcile.
func ReconcileTenant(q QuotaAdmin) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := q.Reconcile(c.UserContext(), c.Params("tenant"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(reconcileResponse{
			TenantID: res.TenantID,
			Drifted:  res.Drifted(),
			Before:   res.Before,
			After:    res.After,
		})
	}
}

// PutSignedObject accepts an upload made through a memory-driver grant.
func PutSignedObject(objects *storage.MemoryBackend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := objects.PutSigned(c.UserContext(), c.OriginalURL(), bytes.NewReader(c.Body()), c.Get(fiber.HeaderContentType))
		if err != nil {
			return writeGrantError(c, err)
		}
		c.Set(fiber.HeaderETag, info.ETag)
		return c.SendStatus(fiber.StatusOK)
	}
}

// GetSignedObject serves a download made through a memory-driver grant.
func GetSignedObject(objects *storage.MemoryBackend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, info, disposition, err := objects.GetSigned(c.UserContext(), c.OriginalURL())
		if err != nil {
			return writeGrantError(c, err)
		}
		defer rc.Close()

		if disposition != "" {
			c.Set(fiber.HeaderContentDisposition, disposition)
		}
		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		if _, err := io.Copy(c.Response().BodyWriter(), rc); err != nil {
			return err
		}
		return nil
	}
}

func writeGrantError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, storage.ErrGrantExpired):
		return writeError(c, fiber.StatusForbidden, "GRANT_EXPIRED", "the link has expired")
	case errors.Is(err, storage.ErrGrantInvalid):
		return writeError(c, fiber.StatusForbidden, "GRANT_INVALID", "the link is not valid")
	case errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "object not found")
	default:
		return writeServiceError(c, err)
	}
}
