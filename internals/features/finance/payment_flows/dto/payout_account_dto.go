package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/service"
)

type CreatePayoutAccountRequest struct {
	PayoutAccountProvider   string         `json:"payout_account_provider" validate:"required,max=32"`
	PayoutAccountIdentifier string         `json:"payout_account_identifier" validate:"required,max=128"`
	PayoutAccountName       string         `json:"payout_account_name" validate:"required,max=160"`
	PayoutAccountType       *string        `json:"payout_account_type,omitempty" validate:"omitempty,max=32"`
	PayoutAccountMeta       map[string]any `json:"payout_account_meta,omitempty"`
}

func (r *CreatePayoutAccountRequest) Normalize() {
	r.PayoutAccountProvider = strings.ToUpper(strings.TrimSpace(r.PayoutAccountProvider))
	r.PayoutAccountIdentifier = strings.TrimSpace(r.PayoutAccountIdentifier)
	r.PayoutAccountName = strings.TrimSpace(r.PayoutAccountName)
	if r.PayoutAccountType != nil {
		s := strings.ToLower(strings.TrimSpace(*r.PayoutAccountType))
		if s == "" {
			r.PayoutAccountType = nil
		} else {
			r.PayoutAccountType = &s
		}
	}
}

func (r CreatePayoutAccountRequest) ToInput() service.RegisterAccountInput {
	return service.RegisterAccountInput{
		Provider:   r.PayoutAccountProvider,
		Identifier: r.PayoutAccountIdentifier,
		Name:       r.PayoutAccountName,
		Type:       r.PayoutAccountType,
		Meta:       r.PayoutAccountMeta,
	}
}

type PayoutAccountResponse struct {
	PayoutAccountID         uuid.UUID         `json:"payout_account_id"`
	PayoutAccountSchoolID   uuid.UUID         `json:"payout_account_school_id"`
	PayoutAccountProvider   string            `json:"payout_account_provider"`
	PayoutAccountIdentifier string            `json:"payout_account_identifier"`
	PayoutAccountName       string            `json:"payout_account_name"`
	PayoutAccountType       *string           `json:"payout_account_type,omitempty"`
	PayoutAccountIsVerified bool              `json:"payout_account_is_verified"`
	PayoutAccountVerifiedAt *time.Time        `json:"payout_account_verified_at,omitempty"`
	PayoutAccountVerifiedBy *uuid.UUID        `json:"payout_account_verified_by,omitempty"`
	PayoutAccountIsActive   bool              `json:"payout_account_is_active"`
	PayoutAccountSelectable bool              `json:"payout_account_selectable"`
	PayoutAccountMeta       datatypes.JSONMap `json:"payout_account_meta,omitempty"`
	PayoutAccountCreatedAt  time.Time         `json:"payout_account_created_at"`
	PayoutAccountUpdatedAt  time.Time         `json:"payout_account_updated_at"`
}

func FromPayoutAccount(a *model.PayoutAccount) PayoutAccountResponse {
	return PayoutAccountResponse{
		PayoutAccountID:         a.PayoutAccountID,
		PayoutAccountSchoolID:   a.PayoutAccountSchoolID,
		PayoutAccountProvider:   a.PayoutAccountProvider,
		PayoutAccountIdentifier: a.PayoutAccountIdentifier,
		PayoutAccountName:       a.PayoutAccountName,
		PayoutAccountType:       a.PayoutAccountType,
		PayoutAccountIsVerified: a.PayoutAccountIsVerified,
		PayoutAccountVerifiedAt: a.PayoutAccountVerifiedAt,
		PayoutAccountVerifiedBy: a.PayoutAccountVerifiedBy,
		PayoutAccountIsActive:   a.PayoutAccountIsActive,
		PayoutAccountSelectable: a.Selectable(),
		PayoutAccountMeta:       a.PayoutAccountMeta,
		PayoutAccountCreatedAt:  a.PayoutAccountCreatedAt,
		PayoutAccountUpdatedAt:  a.PayoutAccountUpdatedAt,
	}
}

func FromPayoutAccounts(rows []model.PayoutAccount) []PayoutAccountResponse {
	out := make([]PayoutAccountResponse, 0, len(rows))
	for i := range rows {
		out = append(out, FromPayoutAccount(&rows[i]))
	}
	return out
}
