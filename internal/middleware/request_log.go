package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
)

// RequestLogger logs one line per request with status and latency.
func RequestLogger(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		fields := map[string]interface{}{
			"method":    c.Method(),
			"path":      c.Path(),
			"status":    status,
			"latencyMs": time.Since(start).Milliseconds(),
		}
		if uid, ok := c.Locals("userId").(string); ok {
			fields["userId"] = uid
		}
		switch {
		case status >= 500:
			log.Error("request failed", fields)
		case status >= 400:
			log.Warn("request rejected", fields)
		default:
			log.Debug("request served", fields)
		}
		return err
	}
}
