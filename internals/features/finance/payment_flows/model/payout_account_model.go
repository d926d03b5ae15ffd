package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  payout_accounts = rekening tujuan milik sekolah per provider.
  - UNIQUE (school_id, provider, account_identifier)
  - maksimal satu akun aktif+terverifikasi per (school_id, provider) → partial unique index
  - tidak pernah di-hard-delete; nonaktif = is_active=false
*/

type PayoutAccount struct {
	PayoutAccountID         uuid.UUID `gorm:"column:payout_account_id;type:uuid;primaryKey" json:"payout_account_id"`
	PayoutAccountSchoolID   uuid.UUID `gorm:"column:payout_account_school_id;type:uuid;not null" json:"payout_account_school_id"`
	PayoutAccountProvider   string    `gorm:"column:payout_account_provider;type:varchar(32);not null" json:"payout_account_provider"`
	PayoutAccountIdentifier string    `gorm:"column:payout_account_identifier;type:varchar(128);not null" json:"payout_account_identifier"`

	PayoutAccountName string  `gorm:"column:payout_account_name;type:varchar(160);not null" json:"payout_account_name"`
	PayoutAccountType *string `gorm:"column:payout_account_type;type:varchar(32)" json:"payout_account_type,omitempty"`

	PayoutAccountIsVerified bool       `gorm:"column:payout_account_is_verified;not null;default:false" json:"payout_account_is_verified"`
	PayoutAccountVerifiedAt *time.Time `gorm:"column:payout_account_verified_at" json:"payout_account_verified_at,omitempty"`
	PayoutAccountVerifiedBy *uuid.UUID `gorm:"column:payout_account_verified_by;type:uuid" json:"payout_account_verified_by,omitempty"`
	PayoutAccountIsActive   bool       `gorm:"column:payout_account_is_active;not null;default:true" json:"payout_account_is_active"`

	PayoutAccountMeta      datatypes.JSONMap `gorm:"column:payout_account_meta" json:"payout_account_meta,omitempty"`
	PayoutAccountCreatedBy *uuid.UUID        `gorm:"column:payout_account_created_by;type:uuid" json:"payout_account_created_by,omitempty"`

	PayoutAccountCreatedAt time.Time `gorm:"column:payout_account_created_at;autoCreateTime" json:"payout_account_created_at"`
	PayoutAccountUpdatedAt time.Time `gorm:"column:payout_account_updated_at;autoUpdateTime" json:"payout_account_updated_at"`
}

func (PayoutAccount) TableName() string { return "payout_accounts" }

func (a *PayoutAccount) BeforeCreate(tx *gorm.DB) error {
	if a.PayoutAccountID == uuid.Nil {
		a.PayoutAccountID = uuid.New()
	}
	return nil
}

// Selectable: boleh dipakai sebagai tujuan split TUITION.
func (a *PayoutAccount) Selectable() bool {
	return a.PayoutAccountIsActive && a.PayoutAccountIsVerified
}
