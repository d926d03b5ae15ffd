// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"schoolku_backend/internals/configs"
	paymentController "schoolku_backend/internals/features/finance/payment_flows/controller"
	paymentRoutes "schoolku_backend/internals/features/finance/payment_flows/route"
	paymentService "schoolku_backend/internals/features/finance/payment_flows/service"
	"schoolku_backend/internals/middlewares"
	schoolkuMiddleware "schoolku_backend/internals/middlewares/auth_school"
)

var startTime time.Time

// Deps: service yang sudah dirakit di main.
type Deps struct {
	DB         *gorm.DB
	Flows      *paymentService.FlowManager
	Registry   *paymentService.PayoutRegistry
	Reconciler *paymentService.Reconciler
	Validate   *validator.Validate

	WebhookRateLimit int
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	BaseRoutes(app, d.DB)

	// ===================== ADMIN (per school) =====================
	log.Println("[INFO] Setting up ADMIN group (Auth → tenant + actor)...")
	admin := app.Group("/api/a",
		middlewares.GlobalRateLimiter(),
		schoolkuMiddleware.AuthJWT(schoolkuMiddleware.AuthJWTOpts{
			Secret:              configs.JWTSecret,
			AllowCookieFallback: true,
		}),
	)

	// ===================== WEBHOOK (PSP) =====================
	log.Println("[INFO] Setting up WEBHOOK group (signature per provider)...")
	hooks := app.Group("/api")

	// ===================== MOUNT ROUTES =====================
	log.Println("[INFO] Mounting Payment flow routes...")
	paymentRoutes.PaymentFlowAdminRoutes(admin,
		paymentController.NewPaymentFlowController(d.Flows, d.Validate),
		paymentController.NewPayoutAccountController(d.Registry, d.Validate),
	)
	paymentRoutes.PaymentWebhookRoutes(hooks,
		paymentController.NewWebhookController(d.Reconciler),
		middlewares.WebhookRateLimiter(d.WebhookRateLimit),
	)
}
