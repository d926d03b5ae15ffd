package controller

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	helper "schoolku_backend/internals/helpers"
	helperAuth "schoolku_backend/internals/helpers/auth"

	"schoolku_backend/internals/features/finance/payment_flows/dto"
	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
	"schoolku_backend/internals/features/finance/payment_flows/service"
)

type PaymentFlowController struct {
	Flows    *service.FlowManager
	Validate *validator.Validate
}

func NewPaymentFlowController(flows *service.FlowManager, v *validator.Validate) *PaymentFlowController {
	if v == nil {
		v = validator.New()
	}
	return &PaymentFlowController{Flows: flows, Validate: v}
}

// POST /payment-flows
func (ctl *PaymentFlowController) Create(c *fiber.Ctx) error {
	schoolID, err := helperAuth.GetSchoolIDFromToken(c)
	if err != nil {
		return err
	}
	actorID, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return err
	}

	var req dto.CreatePaymentFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	flow, err := ctl.Flows.CreateFlow(c.UserContext(), req.ToInput(), schoolID, &actorID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonCreated(c, "Payment flow dibuat", dto.FromPaymentFlow(flow))
}

// GET /payment-flows?status=&flow_type=&provider=&page=&per_page=
func (ctl *PaymentFlowController) List(c *fiber.Ctx) error {
	schoolID, err := helperAuth.GetSchoolIDFromToken(c)
	if err != nil {
		return err
	}

	var q dto.ListPaymentFlowQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Query tidak valid")
	}
	q.Normalize()
	if err := ctl.Validate.Struct(&q); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	p := helper.ResolvePaging(c, 20, 100)
	rows, total, err := ctl.Flows.ListFlows(c.UserContext(), repository.FlowFilter{
		SchoolID: schoolID,
		Status:   model.FlowStatus(q.Status),
		FlowType: model.FlowType(q.FlowType),
		Provider: q.Provider,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonList(c, "ok", dto.FromPaymentFlows(rows), helper.BuildPagination(total, p, len(rows)))
}

// GET /payment-flows/:id
func (ctl *PaymentFlowController) GetByID(c *fiber.Ctx) error {
	schoolID, err := helperAuth.GetSchoolIDFromToken(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	flow, err := ctl.Flows.GetFlow(c.UserContext(), schoolID, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromPaymentFlow(flow))
}

// GET /payment-flows/:id/callbacks
func (ctl *PaymentFlowController) Callbacks(c *fiber.Ctx) error {
	schoolID, err := helperAuth.GetSchoolIDFromToken(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	rows, err := ctl.Flows.ListCallbacks(c.UserContext(), schoolID, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromCallbacks(rows))
}
