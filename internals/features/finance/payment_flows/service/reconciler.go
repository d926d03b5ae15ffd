package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
)

/* =========================================================
   Reconciler: notifikasi PSP (push) dan hasil polling (pull) → transisi status.
   Aman terhadap duplikat & urutan acak: CAS pada status + cek state machine.
========================================================= */

type Reconciler struct {
	flows     FlowStore
	callbacks CallbackStore
	adapters  *provider.Registry
	audit     Auditor
	now       func() time.Time
}

func NewReconciler(flows FlowStore, callbacks CallbackStore, adapters *provider.Registry, audit Auditor) *Reconciler {
	return &Reconciler{flows: flows, callbacks: callbacks, adapters: adapters, audit: audit, now: time.Now}
}

type CallbackResult struct {
	Outcome model.CallbackOutcome
	FlowID  *uuid.UUID
	From    model.FlowStatus
	To      model.FlowStatus
}

// HandleCallback memproses webhook mentah dari provider.
// ErrFlowNotFound dan ErrMalformedCallback tetap di-ack (200) oleh controller.
func (r *Reconciler) HandleCallback(ctx context.Context, providerName string, raw provider.RawCallback) (*CallbackResult, error) {
	adapter, ok := r.adapters.Get(providerName)
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	if !adapter.VerifySignature(raw) {
		log.Printf("[SECURITY] %s callback ditolak: signature tidak valid", adapter.Name())
		return nil, ErrInvalidSignature
	}
	ev, err := adapter.ParseCallback(raw)
	if err != nil {
		log.Printf("[WEBHOOK] %s payload tidak bisa dibaca: %v", adapter.Name(), err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	return r.apply(ctx, adapter.Name(), ev.Reference, ev.Status, raw.Body, model.CallbackSourceWebhook)
}

// ApplyPolledStatus: jalur yang sama dengan webhook, sumber = poll (sweeper).
func (r *Reconciler) ApplyPolledStatus(ctx context.Context, flow *model.PaymentFlow, res *provider.StatusResult) (*CallbackResult, error) {
	ref := res.Reference
	if flow.PaymentFlowProviderRef != nil && *flow.PaymentFlowProviderRef != "" {
		ref = *flow.PaymentFlowProviderRef
	}
	return r.apply(ctx, flow.PaymentFlowProvider, ref, res.Status, res.Raw, model.CallbackSourcePoll)
}

// ExpireFlow: checkout lewat expires_at dan provider masih melaporkan PENDING → CANCELLED.
func (r *Reconciler) ExpireFlow(ctx context.Context, flow *model.PaymentFlow) (*CallbackResult, error) {
	ref := ""
	if flow.PaymentFlowProviderRef != nil {
		ref = *flow.PaymentFlowProviderRef
	}
	return r.apply(ctx, flow.PaymentFlowProvider, ref, providerStatusExpired, nil, model.CallbackSourcePoll)
}

func (r *Reconciler) apply(ctx context.Context, providerName, ref, providerStatus string, payload []byte, source model.CallbackSource) (*CallbackResult, error) {
	body := jsonOrNil(payload)

	flow, err := r.flows.FindByProviderReference(ctx, providerName, ref)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		log.Printf("[WEBHOOK] %s reference %q tidak dikenal (ignored)", providerName, ref)
		r.appendLog(ctx, &model.PaymentFlowCallback{
			FlowCallbackProvider:       providerName,
			FlowCallbackProviderRef:    ref,
			FlowCallbackProviderStatus: providerStatus,
			FlowCallbackOutcome:        model.CallbackOutcomeUnmatched,
			FlowCallbackSource:         source,
			FlowCallbackPayload:        body,
		})
		r.audit.Record(AuditEvent{
			Action:     AuditCallbackUnmatched,
			Resource:   auditResourceFlow,
			ResourceID: ref,
			Changes:    map[string]any{"provider": providerName, "provider_status": providerStatus, "source": source},
		})
		return &CallbackResult{Outcome: model.CallbackOutcomeUnmatched}, ErrFlowNotFound
	}

	to := MapProviderStatus(providerStatus)

	// maksimal 2 putaran: percobaan awal + 1x ulang setelah konflik CAS
	for attempt := 0; attempt < 2; attempt++ {
		from := flow.PaymentFlowStatus
		res := &CallbackResult{FlowID: &flow.PaymentFlowID, From: from, To: to}

		switch {
		case from == to:
			res.Outcome = model.CallbackOutcomeDuplicate
		case !model.CanTransition(from, to):
			res.Outcome = model.CallbackOutcomeStale
		}
		if res.Outcome != "" {
			// poll yang tidak mengubah status tidak dicatat
			if source != model.CallbackSourcePoll {
				r.appendLog(ctx, r.callbackRow(flow, ref, providerStatus, to, res.Outcome, source, body))
			}
			return res, nil
		}

		at := r.now()
		upd := repository.StatusUpdate{To: to, At: at, LastCallbackPayload: body}
		if to == model.FlowStatusPaid && from != model.FlowStatusPaid {
			upd.PaidAt = &at
		}
		ok, err := r.flows.UpdateStatus(ctx, flow.PaymentFlowID, from, upd)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Outcome = model.CallbackOutcomeApplied
			r.appendLog(ctx, r.callbackRow(flow, ref, providerStatus, to, res.Outcome, source, body))
			r.audit.Record(AuditEvent{
				Action:     AuditFlowStatusChanged,
				Resource:   auditResourceFlow,
				ResourceID: flow.PaymentFlowID.String(),
				Changes: map[string]any{
					"from":            from,
					"to":              to,
					"provider":        providerName,
					"provider_status": providerStatus,
					"source":          source,
				},
				TenantID: uuidPtr(flow.PaymentFlowSchoolID),
			})
			log.Printf("[WEBHOOK] flow %s %s → %s (%s)", flow.PaymentFlowID, from, to, source)
			return res, nil
		}

		// status berubah di antara baca & tulis: baca ulang lalu evaluasi lagi
		flow, err = r.flows.FindByProviderReference(ctx, providerName, ref)
		if err != nil {
			return nil, err
		}
	}
	log.Printf("[WEBHOOK] flow %s konflik CAS berulang, minta provider retry", flow.PaymentFlowID)
	return nil, ErrConcurrentUpdate
}

func (r *Reconciler) callbackRow(flow *model.PaymentFlow, ref, providerStatus string, mapped model.FlowStatus, outcome model.CallbackOutcome, source model.CallbackSource, body datatypes.JSON) *model.PaymentFlowCallback {
	flowID := flow.PaymentFlowID
	schoolID := flow.PaymentFlowSchoolID
	return &model.PaymentFlowCallback{
		FlowCallbackFlowID:         &flowID,
		FlowCallbackSchoolID:       &schoolID,
		FlowCallbackProvider:       flow.PaymentFlowProvider,
		FlowCallbackProviderRef:    ref,
		FlowCallbackProviderStatus: providerStatus,
		FlowCallbackMappedStatus:   &mapped,
		FlowCallbackOutcome:        outcome,
		FlowCallbackSource:         source,
		FlowCallbackPayload:        body,
	}
}

// appendLog: gagal tulis log tidak membatalkan transisi yang sudah commit.
func (r *Reconciler) appendLog(ctx context.Context, c *model.PaymentFlowCallback) {
	if c.FlowCallbackID == uuid.Nil {
		c.FlowCallbackID = uuid.New()
	}
	if c.FlowCallbackReceivedAt.IsZero() {
		c.FlowCallbackReceivedAt = r.now()
	}
	if err := r.callbacks.Append(ctx, c); err != nil {
		log.Printf("[WEBHOOK] simpan callback log %s/%s gagal: %v", c.FlowCallbackProvider, c.FlowCallbackProviderRef, err)
	}
}

func jsonOrNil(b []byte) datatypes.JSON {
	if len(b) == 0 || !sonic.Valid(b) {
		return nil
	}
	return datatypes.JSON(b)
}
