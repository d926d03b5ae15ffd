package middlewares

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultRequestTimeout = 5 * time.Second

// RequestTimeoutMiddleware memasang deadline per request di UserContext.
// Semua call DB/PSP yang memakai c.UserContext() ikut terpotong.
func RequestTimeoutMiddleware(d time.Duration) fiber.Handler {
	if d <= 0 {
		d = defaultRequestTimeout
	}
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
