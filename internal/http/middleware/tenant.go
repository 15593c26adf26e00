package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// TenantHeader carries the caller's tenant, set by the authenticating proxy in front of the API.
	TenantHeader = "X-Tenant-ID"
	// TenantLocalKey is the key used to store the tenant in Fiber's context locals.
	TenantLocalKey = "tenant_id"
)

// Tenant copies the trimmed X-Tenant-ID header into locals. Requests without it pass
// through untouched; the handlers reject them with an unauthenticated error.
func Tenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if t := strings.TrimSpace(c.Get(TenantHeader)); t != "" {
			c.Locals(TenantLocalKey, t)
		}
		return c.Next()
	}
}
