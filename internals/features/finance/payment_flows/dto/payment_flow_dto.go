package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/service"
)

/* =========================================================
   REQUEST
   destination tidak ada di request: selalu diturunkan dari flow_type.
========================================================= */

type CreatePaymentFlowRequest struct {
	PaymentFlowType            string           `json:"flow_type" validate:"required"`
	PaymentFlowStudentID       *uuid.UUID       `json:"student_id,omitempty"`
	PaymentFlowAmount          *decimal.Decimal `json:"amount" validate:"required"` // pointer: kosong ≠ 0
	PaymentFlowCurrency        string           `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	PaymentFlowProvider        string           `json:"provider" validate:"required,max=32"`
	PaymentFlowReason          *string          `json:"reason,omitempty" validate:"omitempty,max=500"`
	PaymentFlowMeta            map[string]any   `json:"metadata,omitempty"`
	PaymentFlowLegacyPaymentID *uuid.UUID       `json:"legacy_payment_id,omitempty"`
}

func (r *CreatePaymentFlowRequest) Normalize() {
	r.PaymentFlowType = strings.ToUpper(strings.TrimSpace(r.PaymentFlowType))
	r.PaymentFlowProvider = strings.ToUpper(strings.TrimSpace(r.PaymentFlowProvider))
	r.PaymentFlowCurrency = strings.ToUpper(strings.TrimSpace(r.PaymentFlowCurrency))
	if r.PaymentFlowReason != nil {
		s := strings.TrimSpace(*r.PaymentFlowReason)
		if s == "" {
			r.PaymentFlowReason = nil
		} else {
			r.PaymentFlowReason = &s
		}
	}
}

// ToInput dipanggil setelah Validate; amount sudah pasti terisi.
func (r CreatePaymentFlowRequest) ToInput() service.CreateFlowInput {
	var amount decimal.Decimal
	if r.PaymentFlowAmount != nil {
		amount = *r.PaymentFlowAmount
	}
	return service.CreateFlowInput{
		FlowType:        r.PaymentFlowType,
		StudentID:       r.PaymentFlowStudentID,
		Amount:          amount,
		Currency:        r.PaymentFlowCurrency,
		Provider:        r.PaymentFlowProvider,
		Reason:          r.PaymentFlowReason,
		Metadata:        r.PaymentFlowMeta,
		LegacyPaymentID: r.PaymentFlowLegacyPaymentID,
	}
}

// ListPaymentFlowQuery: ?status=&flow_type=&provider=&page=&per_page=
type ListPaymentFlowQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=INITIATED PENDING PAID FAILED CANCELLED REFUNDED"`
	FlowType string `query:"flow_type" validate:"omitempty,oneof=SAAS TUITION"`
	Provider string `query:"provider" validate:"omitempty,max=32"`
}

func (q *ListPaymentFlowQuery) Normalize() {
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	q.FlowType = strings.ToUpper(strings.TrimSpace(q.FlowType))
	q.Provider = strings.ToUpper(strings.TrimSpace(q.Provider))
}

/* =========================================================
   RESPONSE
========================================================= */

type PaymentFlowResponse struct {
	PaymentFlowID              uuid.UUID         `json:"payment_flow_id"`
	PaymentFlowSchoolID        uuid.UUID         `json:"payment_flow_school_id"`
	PaymentFlowType            model.FlowType    `json:"payment_flow_type"`
	PaymentFlowDestination     model.Destination `json:"payment_flow_destination"`
	PaymentFlowStudentID       *uuid.UUID        `json:"payment_flow_student_id,omitempty"`
	PaymentFlowAmount          string            `json:"payment_flow_amount"`
	PaymentFlowCurrency        string            `json:"payment_flow_currency"`
	PaymentFlowProvider        string            `json:"payment_flow_provider"`
	PaymentFlowProviderRef     *string           `json:"payment_flow_provider_reference,omitempty"`
	PaymentFlowPaymentURL      *string           `json:"payment_flow_payment_url,omitempty"`
	PaymentFlowLegacyPaymentID *uuid.UUID        `json:"payment_flow_legacy_payment_id,omitempty"`
	PaymentFlowPayoutAccountID *uuid.UUID        `json:"payment_flow_payout_account_id,omitempty"`
	PaymentFlowMeta            datatypes.JSONMap `json:"payment_flow_meta,omitempty"`
	PaymentFlowReason          *string           `json:"payment_flow_reason,omitempty"`
	PaymentFlowCreatedBy       *uuid.UUID        `json:"payment_flow_created_by,omitempty"`
	PaymentFlowStatus          model.FlowStatus  `json:"payment_flow_status"`
	PaymentFlowPaidAt          *time.Time        `json:"payment_flow_paid_at,omitempty"`
	PaymentFlowExpiresAt       *time.Time        `json:"payment_flow_expires_at,omitempty"`
	PaymentFlowCreatedAt       time.Time         `json:"payment_flow_created_at"`
	PaymentFlowUpdatedAt       time.Time         `json:"payment_flow_updated_at"`
}

func FromPaymentFlow(f *model.PaymentFlow) PaymentFlowResponse {
	return PaymentFlowResponse{
		PaymentFlowID:              f.PaymentFlowID,
		PaymentFlowSchoolID:        f.PaymentFlowSchoolID,
		PaymentFlowType:            f.PaymentFlowType,
		PaymentFlowDestination:     f.PaymentFlowDestination,
		PaymentFlowStudentID:       f.PaymentFlowStudentID,
		PaymentFlowAmount:          f.PaymentFlowAmount.StringFixed(2),
		PaymentFlowCurrency:        f.PaymentFlowCurrency,
		PaymentFlowProvider:        f.PaymentFlowProvider,
		PaymentFlowProviderRef:     f.PaymentFlowProviderRef,
		PaymentFlowPaymentURL:      f.PaymentFlowPaymentURL,
		PaymentFlowLegacyPaymentID: f.PaymentFlowLegacyPaymentID,
		PaymentFlowPayoutAccountID: f.PaymentFlowPayoutAccountID,
		PaymentFlowMeta:            f.PaymentFlowMeta,
		PaymentFlowReason:          f.PaymentFlowReason,
		PaymentFlowCreatedBy:       f.PaymentFlowCreatedBy,
		PaymentFlowStatus:          f.PaymentFlowStatus,
		PaymentFlowPaidAt:          f.PaymentFlowPaidAt,
		PaymentFlowExpiresAt:       f.PaymentFlowExpiresAt,
		PaymentFlowCreatedAt:       f.PaymentFlowCreatedAt,
		PaymentFlowUpdatedAt:       f.PaymentFlowUpdatedAt,
	}
}

func FromPaymentFlows(rows []model.PaymentFlow) []PaymentFlowResponse {
	out := make([]PaymentFlowResponse, 0, len(rows))
	for i := range rows {
		out = append(out, FromPaymentFlow(&rows[i]))
	}
	return out
}

type PaymentFlowCallbackResponse struct {
	FlowCallbackID             uuid.UUID             `json:"flow_callback_id"`
	FlowCallbackProvider       string                `json:"flow_callback_provider"`
	FlowCallbackProviderRef    string                `json:"flow_callback_provider_reference"`
	FlowCallbackProviderStatus string                `json:"flow_callback_provider_status"`
	FlowCallbackMappedStatus   *model.FlowStatus     `json:"flow_callback_mapped_status,omitempty"`
	FlowCallbackOutcome        model.CallbackOutcome `json:"flow_callback_outcome"`
	FlowCallbackSource         model.CallbackSource  `json:"flow_callback_source"`
	FlowCallbackPayload        datatypes.JSON        `json:"flow_callback_payload,omitempty"`
	FlowCallbackReceivedAt     time.Time             `json:"flow_callback_received_at"`
}

func FromCallbacks(rows []model.PaymentFlowCallback) []PaymentFlowCallbackResponse {
	out := make([]PaymentFlowCallbackResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, PaymentFlowCallbackResponse{
			FlowCallbackID:             c.FlowCallbackID,
			FlowCallbackProvider:       c.FlowCallbackProvider,
			FlowCallbackProviderRef:    c.FlowCallbackProviderRef,
			FlowCallbackProviderStatus: c.FlowCallbackProviderStatus,
			FlowCallbackMappedStatus:   c.FlowCallbackMappedStatus,
			FlowCallbackOutcome:        c.FlowCallbackOutcome,
			FlowCallbackSource:         c.FlowCallbackSource,
			FlowCallbackPayload:        c.FlowCallbackPayload,
			FlowCallbackReceivedAt:     c.FlowCallbackReceivedAt,
		})
	}
	return out
}
