package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

type PayoutAccountRepository struct {
	DB *gorm.DB
}

func NewPayoutAccountRepository(db *gorm.DB) *PayoutAccountRepository {
	return &PayoutAccountRepository{DB: db}
}

func (r *PayoutAccountRepository) Create(ctx context.Context, a *model.PayoutAccount) error {
	return translate(r.DB.WithContext(ctx).Create(a).Error)
}

func (r *PayoutAccountRepository) GetByID(ctx context.Context, schoolID, id uuid.UUID) (*model.PayoutAccount, error) {
	var a model.PayoutAccount
	err := r.DB.WithContext(ctx).
		Where("payout_account_id = ? AND payout_account_school_id = ?", id, schoolID).
		Take(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// FindSelectable: aktif + verified. Tie-break created_at terbaru (hanya relevan untuk data lama
// sebelum uq_payout_accounts_selectable ada).
func (r *PayoutAccountRepository) FindSelectable(ctx context.Context, schoolID uuid.UUID, provider string) (*model.PayoutAccount, error) {
	var a model.PayoutAccount
	err := r.DB.WithContext(ctx).
		Where("payout_account_school_id = ? AND payout_account_provider = ?", schoolID, provider).
		Where("payout_account_is_active = ? AND payout_account_is_verified = ?", true, true).
		Order("payout_account_created_at DESC").
		Take(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// MarkVerified: compare-and-set verified=false → true. false = sudah verified / tidak aktif.
func (r *PayoutAccountRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time, by *uuid.UUID) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&model.PayoutAccount{}).
		Where("payout_account_id = ? AND payout_account_is_verified = ? AND payout_account_is_active = ?", id, false, true).
		Updates(map[string]any{
			"payout_account_is_verified": true,
			"payout_account_verified_at": at,
			"payout_account_verified_by": by,
			"payout_account_updated_at":  at,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PayoutAccountRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&model.PayoutAccount{}).
		Where("payout_account_id = ? AND payout_account_is_active = ?", id, true).
		Updates(map[string]any{
			"payout_account_is_active":  false,
			"payout_account_updated_at": at,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PayoutAccountRepository) List(ctx context.Context, schoolID uuid.UUID) ([]model.PayoutAccount, error) {
	var out []model.PayoutAccount
	err := r.DB.WithContext(ctx).
		Where("payout_account_school_id = ?", schoolID).
		Order("payout_account_created_at DESC").
		Find(&out).Error
	return out, translate(err)
}
