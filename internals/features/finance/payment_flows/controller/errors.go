package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/service"
	helper "schoolku_backend/internals/helpers"
)

type errMapping struct {
	target error
	status int
	code   string
}

var adminErrors = []errMapping{
	{service.ErrInvalidFlowType, fiber.StatusBadRequest, "INVALID_FLOW_TYPE"},
	{service.ErrInvalidAmount, fiber.StatusBadRequest, "INVALID_AMOUNT"},
	{service.ErrMissingStudent, fiber.StatusUnprocessableEntity, "MISSING_STUDENT"},
	{service.ErrPrerequisiteNotMet, fiber.StatusUnprocessableEntity, "PREREQUISITE_NOT_MET"},
	{service.ErrSplitUnsupported, fiber.StatusUnprocessableEntity, "SPLIT_UNSUPPORTED"},
	{service.ErrUnsupportedProvider, fiber.StatusUnprocessableEntity, "UNSUPPORTED_PROVIDER"},
	{service.ErrDuplicateActiveAccount, fiber.StatusConflict, "DUPLICATE_ACTIVE_ACCOUNT"},
	{service.ErrDuplicateAccount, fiber.StatusConflict, "DUPLICATE_ACCOUNT"},
	{service.ErrAccountInactive, fiber.StatusConflict, "ACCOUNT_INACTIVE"},
	{service.ErrConcurrentUpdate, fiber.StatusConflict, "CONCURRENT_UPDATE"},
	{service.ErrAccountNotFound, fiber.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{service.ErrFlowNotFound, fiber.StatusNotFound, "FLOW_NOT_FOUND"},
	{provider.ErrNotConfigured, fiber.StatusServiceUnavailable, "PROVIDER_NOT_CONFIGURED"},
}

// writeServiceError: sentinel service/provider → envelope error standar.
func writeServiceError(c *fiber.Ctx, err error) error {
	for _, m := range adminErrors {
		if errors.Is(err, m.target) {
			return helper.JsonErrorCode(c, m.status, m.code, m.target.Error())
		}
	}
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return helper.JsonErrorCode(c, fiber.StatusBadGateway, "PROVIDER_ERROR", pe.Error())
	}
	log.Printf("[FLOW] %s %s: %v", c.Method(), c.Path(), err)
	return helper.JsonError(c, fiber.StatusInternalServerError, "Terjadi kesalahan pada server")
}
