package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
)

/* ===================== flows ===================== */

type fakeFlowStore struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]model.PaymentFlow
	order []uuid.UUID

	// casMisses > 0: UpdateStatus berikutnya gagal CAS (simulasi penulis lain)
	casMisses int
	// onCASMiss dipanggil saat miss disimulasikan, mis. untuk mengubah status
	onCASMiss func(f *model.PaymentFlow)

	stale  []model.PaymentFlow
	polled []uuid.UUID
}

func newFakeFlowStore() *fakeFlowStore {
	return &fakeFlowStore{rows: map[uuid.UUID]model.PaymentFlow{}}
}

func (s *fakeFlowStore) Create(_ context.Context, f *model.PaymentFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.PaymentFlowProviderRef != nil {
		for _, r := range s.rows {
			if r.PaymentFlowProvider == f.PaymentFlowProvider && r.PaymentFlowProviderRef != nil && *r.PaymentFlowProviderRef == *f.PaymentFlowProviderRef {
				return repository.ErrDuplicate
			}
		}
	}
	now := time.Now()
	f.PaymentFlowCreatedAt, f.PaymentFlowUpdatedAt = now, now
	s.rows[f.PaymentFlowID] = *f
	s.order = append(s.order, f.PaymentFlowID)
	return nil
}

func (s *fakeFlowStore) GetByID(_ context.Context, schoolID, id uuid.UUID) (*model.PaymentFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.rows[id]
	if !ok || f.PaymentFlowSchoolID != schoolID {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (s *fakeFlowStore) FindByProviderReference(_ context.Context, prov, ref string) (*model.PaymentFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.rows {
		if f.PaymentFlowProvider == prov && f.PaymentFlowProviderRef != nil && *f.PaymentFlowProviderRef == ref {
			cp := f
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeFlowStore) UpdateStatus(_ context.Context, id uuid.UUID, expectFrom model.FlowStatus, u repository.StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.rows[id]
	if !ok {
		return false, nil
	}
	if s.casMisses > 0 {
		s.casMisses--
		if s.onCASMiss != nil {
			s.onCASMiss(&f)
			s.rows[id] = f
		}
		return false, nil
	}
	if f.PaymentFlowStatus != expectFrom {
		return false, nil
	}
	f.PaymentFlowStatus = u.To
	f.PaymentFlowUpdatedAt = u.At
	if u.PaidAt != nil {
		t := *u.PaidAt
		f.PaymentFlowPaidAt = &t
	}
	if u.ProviderRef != nil {
		f.PaymentFlowProviderRef = u.ProviderRef
	}
	if u.PaymentURL != nil {
		f.PaymentFlowPaymentURL = u.PaymentURL
	}
	if u.ExpiresAt != nil {
		f.PaymentFlowExpiresAt = u.ExpiresAt
	}
	if len(u.LastCallbackPayload) > 0 {
		f.PaymentFlowLastCallbackPayload = u.LastCallbackPayload
	}
	s.rows[id] = f
	return true, nil
}

func (s *fakeFlowStore) List(_ context.Context, filter repository.FlowFilter) ([]model.PaymentFlow, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PaymentFlow
	for _, id := range s.order {
		f := s.rows[id]
		if f.PaymentFlowSchoolID == filter.SchoolID {
			out = append(out, f)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeFlowStore) ListStalePending(_ context.Context, providers []string, _ time.Time, _ int) ([]model.PaymentFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := map[string]bool{}
	for _, p := range providers {
		allowed[p] = true
	}
	var out []model.PaymentFlow
	for _, f := range s.stale {
		if allowed[f.PaymentFlowProvider] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeFlowStore) MarkPolled(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polled = append(s.polled, id)
	if f, ok := s.rows[id]; ok {
		f.PaymentFlowLastPolledAt = &at
		s.rows[id] = f
	}
	return nil
}

func (s *fakeFlowStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *fakeFlowStore) get(id uuid.UUID) model.PaymentFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

/* ===================== payout accounts ===================== */

type fakeAccountStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.PayoutAccount
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{rows: map[uuid.UUID]model.PayoutAccount{}}
}

func (s *fakeAccountStore) Create(_ context.Context, a *model.PayoutAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.PayoutAccountSchoolID == a.PayoutAccountSchoolID && r.PayoutAccountProvider == a.PayoutAccountProvider && r.PayoutAccountIdentifier == a.PayoutAccountIdentifier {
			return repository.ErrDuplicate
		}
	}
	a.PayoutAccountCreatedAt = time.Now()
	s.rows[a.PayoutAccountID] = *a
	return nil
}

func (s *fakeAccountStore) GetByID(_ context.Context, schoolID, id uuid.UUID) (*model.PayoutAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok || a.PayoutAccountSchoolID != schoolID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *fakeAccountStore) FindSelectable(_ context.Context, schoolID uuid.UUID, prov string) (*model.PayoutAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.rows {
		if a.PayoutAccountSchoolID == schoolID && a.PayoutAccountProvider == prov && a.Selectable() {
			cp := a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeAccountStore) MarkVerified(_ context.Context, id uuid.UUID, at time.Time, by *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok || a.PayoutAccountIsVerified || !a.PayoutAccountIsActive {
		return false, nil
	}
	for _, r := range s.rows {
		if r.PayoutAccountID != id && r.PayoutAccountSchoolID == a.PayoutAccountSchoolID && r.PayoutAccountProvider == a.PayoutAccountProvider && r.Selectable() {
			return false, repository.ErrDuplicate
		}
	}
	a.PayoutAccountIsVerified = true
	a.PayoutAccountVerifiedAt = &at
	a.PayoutAccountVerifiedBy = by
	s.rows[id] = a
	return true, nil
}

func (s *fakeAccountStore) Deactivate(_ context.Context, id uuid.UUID, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok || !a.PayoutAccountIsActive {
		return false, nil
	}
	a.PayoutAccountIsActive = false
	s.rows[id] = a
	return true, nil
}

func (s *fakeAccountStore) List(_ context.Context, schoolID uuid.UUID) ([]model.PayoutAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PayoutAccount
	for _, a := range s.rows {
		if a.PayoutAccountSchoolID == schoolID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayoutAccountIdentifier < out[j].PayoutAccountIdentifier })
	return out, nil
}

// seedSelectable: akun aktif + verified langsung di store.
func (s *fakeAccountStore) seedSelectable(schoolID uuid.UUID, prov, ident string) model.PayoutAccount {
	now := time.Now()
	a := model.PayoutAccount{
		PayoutAccountID:         uuid.New(),
		PayoutAccountSchoolID:   schoolID,
		PayoutAccountProvider:   prov,
		PayoutAccountIdentifier: ident,
		PayoutAccountName:       "Rekening " + ident,
		PayoutAccountIsVerified: true,
		PayoutAccountVerifiedAt: &now,
		PayoutAccountIsActive:   true,
	}
	s.mu.Lock()
	s.rows[a.PayoutAccountID] = a
	s.mu.Unlock()
	return a
}

/* ===================== callbacks ===================== */

type fakeCallbackStore struct {
	mu   sync.Mutex
	rows []model.PaymentFlowCallback
}

func (s *fakeCallbackStore) Append(_ context.Context, c *model.PaymentFlowCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *c)
	return nil
}

func (s *fakeCallbackStore) ListByFlow(_ context.Context, flowID uuid.UUID) ([]model.PaymentFlowCallback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PaymentFlowCallback
	for _, c := range s.rows {
		if c.FlowCallbackFlowID != nil && *c.FlowCallbackFlowID == flowID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCallbackStore) all() []model.PaymentFlowCallback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PaymentFlowCallback(nil), s.rows...)
}

/* ===================== audit ===================== */

type recordingAuditor struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (a *recordingAuditor) Record(ev AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *recordingAuditor) actions(action string) []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditEvent
	for _, ev := range a.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

/* ===================== adapter ===================== */

type fakeAdapter struct {
	name   string
	online bool
	split  bool

	mu          sync.Mutex
	initiateErr error
	initiateRes *provider.InitiateResult
	requests    []provider.InitiateRequest

	status    *provider.StatusResult
	statusErr error
	queries   int
}

func (a *fakeAdapter) Name() string        { return a.name }
func (a *fakeAdapter) Online() bool        { return a.online }
func (a *fakeAdapter) SupportsSplit() bool { return a.split }

func (a *fakeAdapter) Initiate(_ context.Context, req provider.InitiateRequest) (*provider.InitiateResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.initiateErr != nil {
		return nil, a.initiateErr
	}
	if a.initiateRes != nil {
		return a.initiateRes, nil
	}
	return &provider.InitiateResult{
		PaymentURL:        "https://psp.test/pay/" + req.Reference,
		ProviderReference: "PSP-" + req.Reference,
	}, nil
}

func (a *fakeAdapter) VerifySignature(provider.RawCallback) bool { return true }

func (a *fakeAdapter) ParseCallback(raw provider.RawCallback) (*provider.CallbackEvent, error) {
	return nil, provider.ErrOperationNotSupported
}

func (a *fakeAdapter) QueryStatus(_ context.Context, ref string) (*provider.StatusResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries++
	if a.statusErr != nil {
		return nil, a.statusErr
	}
	if a.status != nil {
		return a.status, nil
	}
	return &provider.StatusResult{Reference: ref, Status: "PENDING"}, nil
}

func (a *fakeAdapter) initiateCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func flowFilterFor(schoolID uuid.UUID) repository.FlowFilter {
	return repository.FlowFilter{SchoolID: schoolID}
}
