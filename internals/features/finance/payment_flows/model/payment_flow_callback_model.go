package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  payment_flow_callbacks = LOG append-only tiap notifikasi PSP (webhook) dan hasil polling sweeper.
  - Bisa banyak row per 1 flow
  - flow_id NULL kalau reference tidak dikenal (unmatched)
*/

type PaymentFlowCallback struct {
	FlowCallbackID       uuid.UUID  `gorm:"column:flow_callback_id;type:uuid;primaryKey" json:"flow_callback_id"`
	FlowCallbackFlowID   *uuid.UUID `gorm:"column:flow_callback_flow_id;type:uuid;index" json:"flow_callback_flow_id,omitempty"`
	FlowCallbackSchoolID *uuid.UUID `gorm:"column:flow_callback_school_id;type:uuid" json:"flow_callback_school_id,omitempty"`

	FlowCallbackProvider       string          `gorm:"column:flow_callback_provider;type:varchar(32);not null" json:"flow_callback_provider"`
	FlowCallbackProviderRef    string          `gorm:"column:flow_callback_provider_reference;not null" json:"flow_callback_provider_reference"`
	FlowCallbackProviderStatus string          `gorm:"column:flow_callback_provider_status" json:"flow_callback_provider_status"`
	FlowCallbackMappedStatus   *FlowStatus     `gorm:"column:flow_callback_mapped_status;type:varchar(16)" json:"flow_callback_mapped_status,omitempty"`
	FlowCallbackOutcome        CallbackOutcome `gorm:"column:flow_callback_outcome;type:varchar(16);not null" json:"flow_callback_outcome"`
	FlowCallbackSource         CallbackSource  `gorm:"column:flow_callback_source;type:varchar(16);not null" json:"flow_callback_source"`
	FlowCallbackPayload        datatypes.JSON  `gorm:"column:flow_callback_payload" json:"flow_callback_payload,omitempty"`

	FlowCallbackReceivedAt time.Time `gorm:"column:flow_callback_received_at;not null" json:"flow_callback_received_at"`
}

func (PaymentFlowCallback) TableName() string { return "payment_flow_callbacks" }

func (c *PaymentFlowCallback) BeforeCreate(tx *gorm.DB) error {
	if c.FlowCallbackID == uuid.Nil {
		c.FlowCallbackID = uuid.New()
	}
	if c.FlowCallbackReceivedAt.IsZero() {
		c.FlowCallbackReceivedAt = time.Now()
	}
	return nil
}
