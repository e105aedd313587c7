package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

// JWTFromCookie verifies the session token and stores its claims under "user".
// Browsers send the jm_token cookie; other clients may use a Bearer header,
// and websocket upgrades may pass ?token=.
func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.ParseJWT(secret, tokenFrom(c))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user", claims)
		return c.Next()
	}
}

func tokenFrom(c *fiber.Ctx) string {
	if tok := c.Cookies(utils.TokenCookie); tok != "" {
		return tok
	}
	if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}
