package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
)

// PayoutRegistry mengelola rekening tujuan sekolah per provider.
type PayoutRegistry struct {
	accounts PayoutAccountStore
	adapters *provider.Registry
	audit    Auditor
	now      func() time.Time
}

func NewPayoutRegistry(accounts PayoutAccountStore, adapters *provider.Registry, audit Auditor) *PayoutRegistry {
	return &PayoutRegistry{accounts: accounts, adapters: adapters, audit: audit, now: time.Now}
}

type RegisterAccountInput struct {
	Provider   string
	Identifier string
	Name       string
	Type       *string
	Meta       map[string]any
}

func (r *PayoutRegistry) Register(ctx context.Context, schoolID uuid.UUID, in RegisterAccountInput, actorID *uuid.UUID) (*model.PayoutAccount, error) {
	ad, ok := r.adapters.Get(in.Provider)
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	prov := ad.Name()

	if _, err := r.accounts.FindSelectable(ctx, schoolID, prov); err == nil {
		return nil, ErrDuplicateActiveAccount
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	acc := &model.PayoutAccount{
		PayoutAccountID:         uuid.New(),
		PayoutAccountSchoolID:   schoolID,
		PayoutAccountProvider:   prov,
		PayoutAccountIdentifier: strings.TrimSpace(in.Identifier),
		PayoutAccountName:       strings.TrimSpace(in.Name),
		PayoutAccountType:       in.Type,
		PayoutAccountIsVerified: false,
		PayoutAccountIsActive:   true,
		PayoutAccountCreatedBy:  actorID,
	}
	if len(in.Meta) > 0 {
		acc.PayoutAccountMeta = datatypes.JSONMap(in.Meta)
	}
	if err := r.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	r.audit.Record(AuditEvent{
		Action:     AuditAccountRegistered,
		Resource:   auditResourcePayoutAcct,
		ResourceID: acc.PayoutAccountID.String(),
		Changes:    map[string]any{"provider": prov, "identifier": acc.PayoutAccountIdentifier},
		TenantID:   uuidPtr(schoolID),
		ActorID:    actorID,
	})
	return acc, nil
}

// Verify: idempotent. Akun lain yang sudah selectable TIDAK dinonaktifkan otomatis.
func (r *PayoutRegistry) Verify(ctx context.Context, schoolID, accountID uuid.UUID, actorID *uuid.UUID) (*model.PayoutAccount, error) {
	acc, err := r.get(ctx, schoolID, accountID)
	if err != nil {
		return nil, err
	}
	if !acc.PayoutAccountIsActive {
		return nil, ErrAccountInactive
	}
	if acc.PayoutAccountIsVerified {
		return acc, nil
	}

	if other, err := r.accounts.FindSelectable(ctx, schoolID, acc.PayoutAccountProvider); err == nil {
		if other.PayoutAccountID != acc.PayoutAccountID {
			return nil, ErrDuplicateActiveAccount
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	at := r.now()
	ok, err := r.accounts.MarkVerified(ctx, acc.PayoutAccountID, at, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateActiveAccount
		}
		return nil, err
	}
	if !ok {
		// kalah balapan: baca ulang untuk tahu alasannya
		cur, err := r.get(ctx, schoolID, accountID)
		if err != nil {
			return nil, err
		}
		if !cur.PayoutAccountIsActive {
			return nil, ErrAccountInactive
		}
		return cur, nil
	}

	acc.PayoutAccountIsVerified = true
	acc.PayoutAccountVerifiedAt = &at
	acc.PayoutAccountVerifiedBy = actorID
	acc.PayoutAccountUpdatedAt = at

	r.audit.Record(AuditEvent{
		Action:     AuditAccountVerified,
		Resource:   auditResourcePayoutAcct,
		ResourceID: acc.PayoutAccountID.String(),
		Changes:    map[string]any{"is_verified": true, "provider": acc.PayoutAccountProvider},
		TenantID:   uuidPtr(schoolID),
		ActorID:    actorID,
	})
	return acc, nil
}

// Deactivate: soft (is_active=false), idempotent.
func (r *PayoutRegistry) Deactivate(ctx context.Context, schoolID, accountID uuid.UUID, actorID *uuid.UUID) (*model.PayoutAccount, error) {
	acc, err := r.get(ctx, schoolID, accountID)
	if err != nil {
		return nil, err
	}
	if !acc.PayoutAccountIsActive {
		return acc, nil
	}
	at := r.now()
	ok, err := r.accounts.Deactivate(ctx, acc.PayoutAccountID, at)
	if err != nil {
		return nil, err
	}
	acc.PayoutAccountIsActive = false
	acc.PayoutAccountUpdatedAt = at
	if ok {
		r.audit.Record(AuditEvent{
			Action:     AuditAccountDeactivated,
			Resource:   auditResourcePayoutAcct,
			ResourceID: acc.PayoutAccountID.String(),
			Changes:    map[string]any{"is_active": false},
			TenantID:   uuidPtr(schoolID),
			ActorID:    actorID,
		})
	}
	return acc, nil
}

// FindSelectable: aktif + verified. Tidak ada → ErrAccountNotFound.
func (r *PayoutRegistry) FindSelectable(ctx context.Context, schoolID uuid.UUID, providerName string) (*model.PayoutAccount, error) {
	prov := strings.ToUpper(strings.TrimSpace(providerName))
	if ad, ok := r.adapters.Get(providerName); ok {
		prov = ad.Name()
	}
	acc, err := r.accounts.FindSelectable(ctx, schoolID, prov)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

func (r *PayoutRegistry) List(ctx context.Context, schoolID uuid.UUID) ([]model.PayoutAccount, error) {
	return r.accounts.List(ctx, schoolID)
}

func (r *PayoutRegistry) get(ctx context.Context, schoolID, id uuid.UUID) (*model.PayoutAccount, error) {
	acc, err := r.accounts.GetByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}
