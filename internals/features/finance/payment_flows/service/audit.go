package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const (
	AuditFlowCreated         = "payment_flow.created"
	AuditFlowInitiateFailed  = "payment_flow.initiate_failed"
	AuditFlowStatusChanged   = "payment_flow.status_changed"
	AuditCallbackUnmatched   = "payment_flow.callback_unmatched"
	AuditAccountRegistered   = "payout_account.registered"
	AuditAccountVerified     = "payout_account.verified"
	AuditAccountDeactivated  = "payout_account.deactivated"
	auditResourceFlow        = "payment_flow"
	auditResourcePayoutAcct  = "payout_account"
	defaultAuditBufferLength = 256
)

type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId"`
	Changes    map[string]any `json:"changes,omitempty"`
	TenantID   *uuid.UUID     `json:"tenantId,omitempty"`
	ActorID    *uuid.UUID     `json:"actorId,omitempty"`
	At         time.Time      `json:"at"`
}

// AuditSink = penyimpanan audit (kolaborator eksternal).
type AuditSink interface {
	Emit(ctx context.Context, ev AuditEvent) error
}

// Auditor dipakai service. Record tidak boleh blocking.
type Auditor interface {
	Record(ev AuditEvent)
}

// LogAuditSink menulis event ke log proses.
type LogAuditSink struct{}

func (LogAuditSink) Emit(_ context.Context, ev AuditEvent) error {
	b, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	log.Printf("[AUDIT] %s", b)
	return nil
}

/* =========================================================
   AsyncAuditor: buffer + 1 worker. Penuh → event dibuang (di-log).
========================================================= */

type AsyncAuditor struct {
	sink AuditSink
	ch   chan AuditEvent
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncAuditor(sink AuditSink, buffer int) *AsyncAuditor {
	if buffer <= 0 {
		buffer = defaultAuditBufferLength
	}
	a := &AsyncAuditor{
		sink: sink,
		ch:   make(chan AuditEvent, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncAuditor) run() {
	defer close(a.done)
	for ev := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.sink.Emit(ctx, ev); err != nil {
			log.Printf("[AUDIT] emit %s %s gagal: %v", ev.Action, ev.ResourceID, err)
		}
		cancel()
	}
}

func (a *AsyncAuditor) Record(ev AuditEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		log.Printf("[AUDIT] auditor closed, drop %s %s", ev.Action, ev.ResourceID)
		return
	}
	select {
	case a.ch <- ev:
	default:
		log.Printf("[AUDIT] buffer penuh, drop %s %s", ev.Action, ev.ResourceID)
	}
}

// Close menunggu semua event yang sudah di-buffer terkirim.
func (a *AsyncAuditor) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
