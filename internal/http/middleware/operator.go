package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// OperatorToken admits requests carrying "Authorization: Bearer <token>". With an empty
// token every request is refused, so the guarded routes stay closed until one is set.
func OperatorToken(token string) fiber.Handler {
	want := []byte(token)
	return func(c *fiber.Ctx) error {
		if len(want) == 0 {
			return fiber.NewError(fiber.StatusForbidden, "admin API is disabled")
		}
		auth := c.Get(fiber.HeaderAuthorization)
		got, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="admin"`)
			return fiber.NewError(fiber.StatusUnauthorized, "operator token required")
		}
		return c.Next()
	}
}
