package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
)

// Kontrak storage yang dipakai service. Implementasi GORM ada di package repository.

type FlowStore interface {
	Create(ctx context.Context, f *model.PaymentFlow) error
	GetByID(ctx context.Context, schoolID, id uuid.UUID) (*model.PaymentFlow, error)
	FindByProviderReference(ctx context.Context, provider, ref string) (*model.PaymentFlow, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expectFrom model.FlowStatus, u repository.StatusUpdate) (bool, error)
	List(ctx context.Context, f repository.FlowFilter) ([]model.PaymentFlow, int64, error)
	ListStalePending(ctx context.Context, providers []string, olderThan time.Time, limit int) ([]model.PaymentFlow, error)
	MarkPolled(ctx context.Context, id uuid.UUID, at time.Time) error
}

type PayoutAccountStore interface {
	Create(ctx context.Context, a *model.PayoutAccount) error
	GetByID(ctx context.Context, schoolID, id uuid.UUID) (*model.PayoutAccount, error)
	FindSelectable(ctx context.Context, schoolID uuid.UUID, provider string) (*model.PayoutAccount, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time, by *uuid.UUID) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, schoolID uuid.UUID) ([]model.PayoutAccount, error)
}

type CallbackStore interface {
	Append(ctx context.Context, c *model.PaymentFlowCallback) error
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]model.PaymentFlowCallback, error)
}

var (
	_ FlowStore          = (*repository.FlowRepository)(nil)
	_ PayoutAccountStore = (*repository.PayoutAccountRepository)(nil)
	_ CallbackStore      = (*repository.CallbackRepository)(nil)
)
