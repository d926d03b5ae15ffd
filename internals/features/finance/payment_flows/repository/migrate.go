package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Index yang menjaga invariant di level storage (bukan check-then-act di aplikasi).
var constraintDDL = []string{
	// satu identitas akun per (tenant, provider, identifier)
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payout_accounts_identity
	   ON payout_accounts (payout_account_school_id, payout_account_provider, payout_account_identifier)`,
	// maksimal satu akun aktif+verified per (tenant, provider)
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payout_accounts_selectable
	   ON payout_accounts (payout_account_school_id, payout_account_provider)
	   WHERE payout_account_is_active AND payout_account_is_verified`,
	// lookup webhook by (provider, reference)
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_flows_provider_ref
	   ON payment_flows (payment_flow_provider, payment_flow_provider_reference)
	   WHERE payment_flow_provider_reference IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_payment_flows_sweep
	   ON payment_flows (payment_flow_status, payment_flow_updated_at)`,
}

// Migrate membuat tabel + constraint. Aman dipanggil berulang.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.PayoutAccount{},
		&model.PaymentFlow{},
		&model.PaymentFlowCallback{},
	); err != nil {
		return err
	}
	for _, ddl := range constraintDDL {
		if err := db.Exec(ddl).Error; err != nil {
			return err
		}
	}
	return nil
}

// translate: gorm error → error repository.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

const pgUniqueViolation = "23505"

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// koneksi tanpa TranslateError: cek kode SQLSTATE langsung
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
