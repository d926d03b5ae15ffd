package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"schoolku_backend/internals/middlewares/logger"
)

// SetupMiddlewares: urutan penting, recover paling luar agar panic di handler manapun tertangkap.
func SetupMiddlewares(app *fiber.App, corsOrigins []string, requestTimeout time.Duration) {
	app.Use(RecoveryMiddleware())
	app.Use(RequestIDMiddleware())
	app.Use(RequestTimeoutMiddleware(requestTimeout))
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware(corsOrigins))
}
