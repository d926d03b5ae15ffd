package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  payment_flows = satu transaksi finansial yang bisa ditelusuri.
  - SAAS    → ACADEMIA (langganan platform)
  - TUITION → SCHOOL   (SPP; dana di-split PSP langsung ke rekening sekolah)
  Tidak pernah dihapus.
*/

type PaymentFlow struct {
	PaymentFlowID       uuid.UUID `gorm:"column:payment_flow_id;type:uuid;primaryKey" json:"payment_flow_id"`
	PaymentFlowSchoolID uuid.UUID `gorm:"column:payment_flow_school_id;type:uuid;not null;index" json:"payment_flow_school_id"`

	// Klasifikasi
	PaymentFlowType        FlowType    `gorm:"column:payment_flow_type;type:varchar(16);not null" json:"payment_flow_type"`
	PaymentFlowDestination Destination `gorm:"column:payment_flow_destination;type:varchar(16);not null" json:"payment_flow_destination"`

	// Payload
	PaymentFlowStudentID       *uuid.UUID        `gorm:"column:payment_flow_student_id;type:uuid" json:"payment_flow_student_id,omitempty"`
	PaymentFlowAmount          decimal.Decimal   `gorm:"column:payment_flow_amount;type:numeric(18,2);not null" json:"payment_flow_amount"`
	PaymentFlowCurrency        string            `gorm:"column:payment_flow_currency;type:varchar(8);not null" json:"payment_flow_currency"`
	PaymentFlowProvider        string            `gorm:"column:payment_flow_provider;type:varchar(32);not null" json:"payment_flow_provider"`
	PaymentFlowProviderRef     *string           `gorm:"column:payment_flow_provider_reference" json:"payment_flow_provider_reference,omitempty"`
	PaymentFlowPaymentURL      *string           `gorm:"column:payment_flow_payment_url" json:"payment_flow_payment_url,omitempty"`
	PaymentFlowLegacyPaymentID *uuid.UUID        `gorm:"column:payment_flow_legacy_payment_id;type:uuid" json:"payment_flow_legacy_payment_id,omitempty"`
	PaymentFlowPayoutAccountID *uuid.UUID        `gorm:"column:payment_flow_payout_account_id;type:uuid" json:"payment_flow_payout_account_id,omitempty"`
	PaymentFlowIdempotencyKey  string            `gorm:"column:payment_flow_idempotency_key;type:varchar(64);not null" json:"payment_flow_idempotency_key"`
	PaymentFlowMeta            datatypes.JSONMap `gorm:"column:payment_flow_meta" json:"payment_flow_meta,omitempty"`
	PaymentFlowReason          *string           `gorm:"column:payment_flow_reason" json:"payment_flow_reason,omitempty"`
	PaymentFlowCreatedBy       *uuid.UUID        `gorm:"column:payment_flow_created_by;type:uuid" json:"payment_flow_created_by,omitempty"`

	// Lifecycle
	PaymentFlowStatus              FlowStatus     `gorm:"column:payment_flow_status;type:varchar(16);not null;index" json:"payment_flow_status"`
	PaymentFlowPaidAt              *time.Time     `gorm:"column:payment_flow_paid_at" json:"payment_flow_paid_at,omitempty"`
	PaymentFlowExpiresAt           *time.Time     `gorm:"column:payment_flow_expires_at" json:"payment_flow_expires_at,omitempty"`
	PaymentFlowLastPolledAt        *time.Time     `gorm:"column:payment_flow_last_polled_at" json:"payment_flow_last_polled_at,omitempty"`
	PaymentFlowLastCallbackPayload datatypes.JSON `gorm:"column:payment_flow_last_callback_payload" json:"payment_flow_last_callback_payload,omitempty"`

	PaymentFlowCreatedAt time.Time `gorm:"column:payment_flow_created_at;autoCreateTime" json:"payment_flow_created_at"`
	PaymentFlowUpdatedAt time.Time `gorm:"column:payment_flow_updated_at;autoUpdateTime" json:"payment_flow_updated_at"`
}

func (PaymentFlow) TableName() string { return "payment_flows" }

func (f *PaymentFlow) BeforeCreate(tx *gorm.DB) error {
	if f.PaymentFlowID == uuid.Nil {
		f.PaymentFlowID = uuid.New()
	}
	if f.PaymentFlowIdempotencyKey == "" {
		f.PaymentFlowIdempotencyKey = f.PaymentFlowID.String()
	}
	return nil
}

/* ===================== Helpers ===================== */

func (f *PaymentFlow) IsTuition() bool { return f.PaymentFlowType == FlowTypeTuition }

func (f *PaymentFlow) IsPaid() bool {
	return f.PaymentFlowStatus == FlowStatusPaid || f.PaymentFlowStatus == FlowStatusRefunded
}

// RoutingConsistent: destination harus sama dengan DestinationFor(type).
func (f *PaymentFlow) RoutingConsistent() bool {
	d, ok := DestinationFor(f.PaymentFlowType)
	return ok && d == f.PaymentFlowDestination
}
