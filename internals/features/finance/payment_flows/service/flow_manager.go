package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
)

// SelectableAccountFinder: sumber payout account untuk flow TUITION.
type SelectableAccountFinder interface {
	FindSelectable(ctx context.Context, schoolID uuid.UUID, providerName string) (*model.PayoutAccount, error)
}

type FlowManagerConfig struct {
	DefaultCurrency string
	FlowTTL         time.Duration // fallback expires_at bila PSP tidak mengirim
}

type FlowManager struct {
	flows     FlowStore
	callbacks CallbackStore
	accounts  SelectableAccountFinder
	adapters  *provider.Registry
	pricing   Pricing
	audit     Auditor
	cfg       FlowManagerConfig
	now       func() time.Time
}

func NewFlowManager(
	flows FlowStore,
	callbacks CallbackStore,
	accounts SelectableAccountFinder,
	adapters *provider.Registry,
	pricing Pricing,
	audit Auditor,
	cfg FlowManagerConfig,
) *FlowManager {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "XOF"
	}
	return &FlowManager{
		flows:     flows,
		callbacks: callbacks,
		accounts:  accounts,
		adapters:  adapters,
		pricing:   pricing,
		audit:     audit,
		cfg:       cfg,
		now:       time.Now,
	}
}

type CreateFlowInput struct {
	FlowType        string
	StudentID       *uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Provider        string
	Reason          *string
	Metadata        map[string]any
	LegacyPaymentID *uuid.UUID
}

// CreateFlow: validasi → resolve destination → simpan INITIATED → delegasi ke adapter.
func (m *FlowManager) CreateFlow(ctx context.Context, in CreateFlowInput, schoolID uuid.UUID, actorID *uuid.UUID) (*model.PaymentFlow, error) {
	flowType, ok := model.ParseFlowType(in.FlowType)
	if !ok {
		return nil, ErrInvalidFlowType
	}
	dest, _ := model.DestinationFor(flowType)
	if in.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	providerName := strings.ToUpper(strings.TrimSpace(in.Provider))
	adapter, known := m.adapters.Get(providerName)
	if known {
		providerName = adapter.Name()
	}

	var payout *model.PayoutAccount
	if flowType == model.FlowTypeTuition {
		if in.StudentID == nil || *in.StudentID == uuid.Nil {
			return nil, ErrMissingStudent
		}
		acc, err := m.accounts.FindSelectable(ctx, schoolID, providerName)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil, ErrPrerequisiteNotMet
			}
			return nil, err
		}
		payout = acc
		// dana SPP tidak boleh mendarat di rekening platform
		if known && adapter.Online() && !adapter.SupportsSplit() {
			return nil, ErrSplitUnsupported
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = m.cfg.DefaultCurrency
	}

	flowID := uuid.New()
	flow := &model.PaymentFlow{
		PaymentFlowID:              flowID,
		PaymentFlowSchoolID:        schoolID,
		PaymentFlowType:            flowType,
		PaymentFlowDestination:     dest,
		PaymentFlowAmount:          in.Amount,
		PaymentFlowCurrency:        currency,
		PaymentFlowProvider:        providerName,
		PaymentFlowLegacyPaymentID: in.LegacyPaymentID,
		PaymentFlowIdempotencyKey:  flowID.String(),
		PaymentFlowReason:          in.Reason,
		PaymentFlowCreatedBy:       actorID,
		PaymentFlowStatus:          model.FlowStatusInitiated,
	}
	if flowType == model.FlowTypeTuition {
		flow.PaymentFlowStudentID = in.StudentID
		flow.PaymentFlowPayoutAccountID = &payout.PayoutAccountID
	}
	if len(in.Metadata) > 0 {
		flow.PaymentFlowMeta = datatypes.JSONMap(in.Metadata)
	}

	if err := m.flows.Create(ctx, flow); err != nil {
		return nil, fmt.Errorf("simpan payment flow: %w", err)
	}

	if !known {
		log.Printf("[FLOW] %s provider %q tidak dikenal, flow tetap INITIATED", flowID, providerName)
		m.recordInitiateFailed(flow, actorID, ErrUnsupportedProvider)
		return nil, ErrUnsupportedProvider
	}

	if adapter.Online() {
		if err := m.initiateOnline(ctx, adapter, flow, payout); err != nil {
			log.Printf("[FLOW] %s initiate %s gagal: %v", flowID, providerName, err)
			m.recordInitiateFailed(flow, actorID, err)
			return nil, err
		}
	} else {
		if err := m.transition(ctx, flow, repository.StatusUpdate{To: model.FlowStatusPending}); err != nil {
			return nil, err
		}
	}

	m.audit.Record(AuditEvent{
		Action:     AuditFlowCreated,
		Resource:   auditResourceFlow,
		ResourceID: flowID.String(),
		Changes: map[string]any{
			"flow_type":   flowType,
			"destination": dest,
			"amount":      flow.PaymentFlowAmount.String(),
			"currency":    currency,
			"provider":    providerName,
			"status":      flow.PaymentFlowStatus,
		},
		TenantID: uuidPtr(schoolID),
		ActorID:  actorID,
	})
	return flow, nil
}

func (m *FlowManager) initiateOnline(ctx context.Context, adapter provider.Adapter, flow *model.PaymentFlow, payout *model.PayoutAccount) error {
	req := provider.InitiateRequest{
		IdempotencyKey: flow.PaymentFlowIdempotencyKey,
		Reference:      flow.PaymentFlowID.String(),
		Amount:         flow.PaymentFlowAmount,
		Currency:       flow.PaymentFlowCurrency,
		Description:    describeFlow(flow),
		Metadata: map[string]any{
			"flow_id":     flow.PaymentFlowID.String(),
			"school_id":   flow.PaymentFlowSchoolID.String(),
			"flow_type":   string(flow.PaymentFlowType),
			"destination": string(flow.PaymentFlowDestination),
		},
	}
	if flow.PaymentFlowDestination == model.DestinationSchool && payout != nil {
		req.Split = &provider.SplitInstruction{
			AccountIdentifier: payout.PayoutAccountIdentifier,
			Commission:        Commission(m.pricing, adapter.Name(), flow.PaymentFlowAmount),
		}
	}

	res, err := adapter.Initiate(ctx, req)
	if err != nil {
		return fmt.Errorf("initiate %s: %w", adapter.Name(), err)
	}

	expires := res.ExpiresAt
	if expires == nil && m.cfg.FlowTTL > 0 {
		t := m.now().Add(m.cfg.FlowTTL)
		expires = &t
	}
	upd := repository.StatusUpdate{
		To:        model.FlowStatusPending,
		ExpiresAt: expires,
	}
	if res.ProviderReference != "" {
		ref := res.ProviderReference
		upd.ProviderRef = &ref
	}
	if res.PaymentURL != "" {
		u := res.PaymentURL
		upd.PaymentURL = &u
	}
	return m.transition(ctx, flow, upd)
}

// transition: CAS dari status flow saat ini, lalu sinkronkan struct in-memory.
func (m *FlowManager) transition(ctx context.Context, flow *model.PaymentFlow, upd repository.StatusUpdate) error {
	upd.At = m.now()
	ok, err := m.flows.UpdateStatus(ctx, flow.PaymentFlowID, flow.PaymentFlowStatus, upd)
	if err != nil {
		return fmt.Errorf("update status flow: %w", err)
	}
	if !ok {
		return ErrConcurrentUpdate
	}
	flow.PaymentFlowStatus = upd.To
	flow.PaymentFlowUpdatedAt = upd.At
	if upd.ProviderRef != nil {
		flow.PaymentFlowProviderRef = upd.ProviderRef
	}
	if upd.PaymentURL != nil {
		flow.PaymentFlowPaymentURL = upd.PaymentURL
	}
	if upd.ExpiresAt != nil {
		flow.PaymentFlowExpiresAt = upd.ExpiresAt
	}
	return nil
}

func (m *FlowManager) recordInitiateFailed(flow *model.PaymentFlow, actorID *uuid.UUID, cause error) {
	m.audit.Record(AuditEvent{
		Action:     AuditFlowInitiateFailed,
		Resource:   auditResourceFlow,
		ResourceID: flow.PaymentFlowID.String(),
		Changes: map[string]any{
			"flow_type": flow.PaymentFlowType,
			"provider":  flow.PaymentFlowProvider,
			"amount":    flow.PaymentFlowAmount.String(),
			"error":     cause.Error(),
		},
		TenantID: uuidPtr(flow.PaymentFlowSchoolID),
		ActorID:  actorID,
	})
}

func describeFlow(f *model.PaymentFlow) string {
	if f.PaymentFlowType == model.FlowTypeTuition {
		return "Pembayaran SPP"
	}
	return "Langganan Platform"
}

/* ===================== Read side ===================== */

func (m *FlowManager) GetFlow(ctx context.Context, schoolID, id uuid.UUID) (*model.PaymentFlow, error) {
	f, err := m.flows.GetByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	return f, nil
}

func (m *FlowManager) ListFlows(ctx context.Context, filter repository.FlowFilter) ([]model.PaymentFlow, int64, error) {
	return m.flows.List(ctx, filter)
}

func (m *FlowManager) ListCallbacks(ctx context.Context, schoolID, flowID uuid.UUID) ([]model.PaymentFlowCallback, error) {
	if _, err := m.GetFlow(ctx, schoolID, flowID); err != nil {
		return nil, err
	}
	return m.callbacks.ListByFlow(ctx, flowID)
}
