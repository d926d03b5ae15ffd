package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

// CallbackRepository: append-only. Tidak ada update/delete.
type CallbackRepository struct {
	DB *gorm.DB
}

func NewCallbackRepository(db *gorm.DB) *CallbackRepository {
	return &CallbackRepository{DB: db}
}

func (r *CallbackRepository) Append(ctx context.Context, c *model.PaymentFlowCallback) error {
	return translate(r.DB.WithContext(ctx).Create(c).Error)
}

func (r *CallbackRepository) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]model.PaymentFlowCallback, error) {
	var out []model.PaymentFlowCallback
	err := r.DB.WithContext(ctx).
		Where("flow_callback_flow_id = ?", flowID).
		Order("flow_callback_received_at ASC").
		Find(&out).Error
	return out, translate(err)
}
