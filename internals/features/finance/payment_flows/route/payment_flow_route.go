package route

import (
	"github.com/gofiber/fiber/v2"

	"schoolku_backend/internals/features/finance/payment_flows/controller"
)

// PaymentFlowAdminRoutes: mount di group admin (/api/a), JWT sudah terpasang di group.
func PaymentFlowAdminRoutes(admin fiber.Router, flows *controller.PaymentFlowController, accounts *controller.PayoutAccountController) {
	pf := admin.Group("/payment-flows")
	pf.Post("/", flows.Create)
	pf.Get("/", flows.List)
	pf.Get("/:id", flows.GetByID)
	pf.Get("/:id/callbacks", flows.Callbacks)

	pa := admin.Group("/payout-accounts")
	pa.Post("/", accounts.Create)
	pa.Get("/", accounts.List)
	pa.Post("/:id/verify", accounts.Verify)
	pa.Post("/:id/deactivate", accounts.Deactivate)
}

// PaymentWebhookRoutes: tanpa JWT, keamanan dari signature per provider.
func PaymentWebhookRoutes(r fiber.Router, webhook *controller.WebhookController, mw ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, mw...), webhook.Handle)
	r.Post("/webhooks/payments/:provider", handlers...)
}
