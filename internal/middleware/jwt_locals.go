package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

func claimsOf(c *fiber.Ctx) (*utils.Claims, bool) {
	claims, ok := c.Locals("user").(*utils.Claims)
	return claims, ok && claims != nil
}

// AttachJWTLocals copies the user id and role out of the verified claims.
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := claimsOf(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		uid := strings.TrimSpace(claims.UserID)
		role := strings.ToLower(strings.TrimSpace(claims.Role))

		if uid == "" {
			return fiber.ErrUnauthorized
		}

		c.Locals("userId", uid)
		c.Locals("role", role)

		return c.Next()
	}
}
