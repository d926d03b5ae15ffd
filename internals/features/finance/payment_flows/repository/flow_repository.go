package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

type FlowRepository struct {
	DB *gorm.DB
}

func NewFlowRepository(db *gorm.DB) *FlowRepository {
	return &FlowRepository{DB: db}
}

// StatusUpdate: kolom yang ikut ditulis bersama status dalam satu CAS.
// Field nil = tidak diubah.
type StatusUpdate struct {
	To                  model.FlowStatus
	At                  time.Time
	PaidAt              *time.Time
	ProviderRef         *string
	PaymentURL          *string
	ExpiresAt           *time.Time
	LastCallbackPayload datatypes.JSON
}

type FlowFilter struct {
	SchoolID uuid.UUID
	Status   model.FlowStatus
	FlowType model.FlowType
	Provider string
	Limit    int
	Offset   int
}

func (r *FlowRepository) Create(ctx context.Context, f *model.PaymentFlow) error {
	return translate(r.DB.WithContext(ctx).Create(f).Error)
}

func (r *FlowRepository) GetByID(ctx context.Context, schoolID, id uuid.UUID) (*model.PaymentFlow, error) {
	var f model.PaymentFlow
	err := r.DB.WithContext(ctx).
		Where("payment_flow_id = ? AND payment_flow_school_id = ?", id, schoolID).
		Take(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// FindByProviderReference: tanpa scope tenant (webhook tidak membawa tenant).
func (r *FlowRepository) FindByProviderReference(ctx context.Context, provider, ref string) (*model.PaymentFlow, error) {
	var f model.PaymentFlow
	err := r.DB.WithContext(ctx).
		Where("payment_flow_provider = ? AND payment_flow_provider_reference = ?", provider, ref).
		Take(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// UpdateStatus = compare-and-set: UPDATE ... WHERE id=? AND status=expectFrom.
// false kalau status sudah berubah di tempat lain.
func (r *FlowRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expectFrom model.FlowStatus, u StatusUpdate) (bool, error) {
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	set := map[string]any{
		"payment_flow_status":     u.To,
		"payment_flow_updated_at": at,
	}
	if u.PaidAt != nil {
		set["payment_flow_paid_at"] = *u.PaidAt
	}
	if u.ProviderRef != nil {
		set["payment_flow_provider_reference"] = *u.ProviderRef
	}
	if u.PaymentURL != nil {
		set["payment_flow_payment_url"] = *u.PaymentURL
	}
	if u.ExpiresAt != nil {
		set["payment_flow_expires_at"] = *u.ExpiresAt
	}
	if len(u.LastCallbackPayload) > 0 {
		set["payment_flow_last_callback_payload"] = u.LastCallbackPayload
	}

	res := r.DB.WithContext(ctx).
		Model(&model.PaymentFlow{}).
		Where("payment_flow_id = ? AND payment_flow_status = ?", id, expectFrom).
		Updates(set)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *FlowRepository) List(ctx context.Context, f FlowFilter) ([]model.PaymentFlow, int64, error) {
	q := r.DB.WithContext(ctx).
		Model(&model.PaymentFlow{}).
		Where("payment_flow_school_id = ?", f.SchoolID)
	if f.Status != "" {
		q = q.Where("payment_flow_status = ?", f.Status)
	}
	if f.FlowType != "" {
		q = q.Where("payment_flow_type = ?", f.FlowType)
	}
	if f.Provider != "" {
		q = q.Where("payment_flow_provider = ?", f.Provider)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	var out []model.PaymentFlow
	err := q.Order("payment_flow_created_at DESC").
		Limit(limit).Offset(f.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return out, total, nil
}

// ListStalePending: kandidat sweeper. PENDING, provider online, sudah punya reference,
// updated_at < olderThan dan belum di-poll sejak olderThan. Yang paling lama tidak disentuh dulu.
func (r *FlowRepository) ListStalePending(ctx context.Context, providers []string, olderThan time.Time, limit int) ([]model.PaymentFlow, error) {
	if len(providers) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var out []model.PaymentFlow
	err := r.DB.WithContext(ctx).
		Where("payment_flow_status = ?", model.FlowStatusPending).
		Where("payment_flow_provider IN ?", providers).
		Where("payment_flow_provider_reference IS NOT NULL").
		Where("payment_flow_updated_at < ?", olderThan).
		Where("(payment_flow_last_polled_at IS NULL OR payment_flow_last_polled_at < ?)", olderThan).
		Order("COALESCE(payment_flow_last_polled_at, payment_flow_updated_at) ASC").
		Limit(limit).
		Find(&out).Error
	return out, translate(err)
}

// MarkPolled mencatat waktu poll terakhir. updated_at tidak ikut berubah.
func (r *FlowRepository) MarkPolled(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.DB.WithContext(ctx).
		Model(&model.PaymentFlow{}).
		Where("payment_flow_id = ?", id).
		UpdateColumn("payment_flow_last_polled_at", at).Error
	return translate(err)
}
