package controller

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/service"
	helper "schoolku_backend/internals/helpers"
)

/* =========================================================
   Webhook PSP (tanpa JWT)
   200 → diproses / diabaikan (PSP berhenti retry)
   401 signature, 404 provider tidak dikenal
   503 konflik CAS, 500 storage (PSP retry)
========================================================= */

type WebhookController struct {
	Reconciler *service.Reconciler
}

func NewWebhookController(r *service.Reconciler) *WebhookController {
	return &WebhookController{Reconciler: r}
}

// POST /webhooks/payments/:provider
func (ctl *WebhookController) Handle(c *fiber.Ctx) error {
	providerName := strings.ToUpper(strings.TrimSpace(c.Params("provider")))

	raw := provider.RawCallback{
		Body:    append([]byte(nil), c.Body()...),
		Headers: map[string]string{},
	}
	c.Request().Header.VisitAll(func(k, v []byte) {
		raw.Headers[strings.ToLower(string(k))] = string(v)
	})

	res, err := ctl.Reconciler.HandleCallback(c.UserContext(), providerName, raw)
	switch {
	case err == nil:
		return helper.JsonOK(c, "processed", fiber.Map{
			"outcome": res.Outcome,
			"flow_id": res.FlowID,
			"from":    res.From,
			"to":      res.To,
		})
	case errors.Is(err, service.ErrFlowNotFound), errors.Is(err, service.ErrMalformedCallback):
		return helper.JsonOK(c, "ignored", fiber.Map{"reason": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		return helper.JsonErrorCode(c, fiber.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
	case errors.Is(err, service.ErrUnsupportedProvider):
		return helper.JsonErrorCode(c, fiber.StatusNotFound, "UNSUPPORTED_PROVIDER", err.Error())
	case errors.Is(err, service.ErrConcurrentUpdate):
		return helper.JsonErrorCode(c, fiber.StatusServiceUnavailable, "CONCURRENT_UPDATE", err.Error())
	default:
		log.Printf("[WEBHOOK] %s gagal diproses: %v", providerName, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal memproses callback")
	}
}
