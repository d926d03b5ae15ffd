package controller

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	helper "schoolku_backend/internals/helpers"
	helperAuth "schoolku_backend/internals/helpers/auth"

	"schoolku_backend/internals/features/finance/payment_flows/dto"
	"schoolku_backend/internals/features/finance/payment_flows/service"
)

type PayoutAccountController struct {
	Registry *service.PayoutRegistry
	Validate *validator.Validate
}

func NewPayoutAccountController(reg *service.PayoutRegistry, v *validator.Validate) *PayoutAccountController {
	if v == nil {
		v = validator.New()
	}
	return &PayoutAccountController{Registry: reg, Validate: v}
}

// POST /payout-accounts
func (ctl *PayoutAccountController) Create(c *fiber.Ctx) error {
	schoolID, err := helperAuth.GetSchoolIDFromToken(c)
	if err != nil {
		return err
	}
	actorID, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return err
	}

	var req dto.CreatePayoutAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	acc, err := ctl.Registry.Register(c.UserContext(), schoolID, req.ToInput(), &actorID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonCreated(c, "Payout account didaftarkan", dto.FromPayoutAccount(acc))
}

// GET /payout-accounts
func (ctl *PayoutAccountController) List(c *fiber.Ctx) error {
	schoolID, err := helperAuth.GetSchoolIDFromToken(c)
	if err != nil {
		return err
	}
	rows, err := ctl.Registry.List(c.UserContext(), schoolID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromPayoutAccounts(rows))
}

// POST /payout-accounts/:id/verify
func (ctl *PayoutAccountController) Verify(c *fiber.Ctx) error {
	schoolID, actorID, id, err := scopedAccountParams(c)
	if err != nil {
		return err
	}
	acc, err := ctl.Registry.Verify(c.UserContext(), schoolID, id, &actorID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonUpdated(c, "Payout account terverifikasi", dto.FromPayoutAccount(acc))
}

// POST /payout-accounts/:id/deactivate
func (ctl *PayoutAccountController) Deactivate(c *fiber.Ctx) error {
	schoolID, actorID, id, err := scopedAccountParams(c)
	if err != nil {
		return err
	}
	acc, err := ctl.Registry.Deactivate(c.UserContext(), schoolID, id, &actorID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonUpdated(c, "Payout account dinonaktifkan", dto.FromPayoutAccount(acc))
}

func scopedAccountParams(c *fiber.Ctx) (schoolID, actorID, id uuid.UUID, err error) {
	if schoolID, err = helperAuth.GetSchoolIDFromToken(c); err != nil {
		return
	}
	if actorID, err = helperAuth.GetUserIDFromToken(c); err != nil {
		return
	}
	if id, err = uuid.Parse(c.Params("id")); err != nil {
		err = fiber.NewError(fiber.StatusBadRequest, "id tidak valid")
	}
	return
}
