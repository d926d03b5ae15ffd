package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured: kredensial provider belum diset. Hanya menggagalkan call, bukan startup.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrMalformedPayload: payload callback tidak bisa dibaca / reference kosong.
	ErrMalformedPayload = errors.New("malformed provider payload")
	// ErrSplitNotSupported: provider tidak punya mekanisme split ke rekening pihak ketiga.
	ErrSplitNotSupported = errors.New("provider does not support split payments")
	// ErrOperationNotSupported: misal QueryStatus pada provider offline.
	ErrOperationNotSupported = errors.New("operation not supported by provider")
)

// ProviderError membawa pesan non-2xx dari PSP.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (http %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// Retryable: 5xx / transport. 4xx tidak pernah di-retry.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

/* =========================================================
   Contract
========================================================= */

// SplitInstruction: bagian terbesar dana dikirim PSP ke rekening sekolah,
// platform hanya menerima commission.
type SplitInstruction struct {
	AccountIdentifier string
	Commission        decimal.Decimal
}

type InitiateRequest struct {
	IdempotencyKey string
	Reference      string // flow id, dipakai sebagai order id di PSP
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       map[string]any
	Split          *SplitInstruction
}

type InitiateResult struct {
	PaymentURL        string
	ProviderReference string
	ExpiresAt         *time.Time
}

// RawCallback = body mentah + header (key lower-case).
type RawCallback struct {
	Body    []byte
	Headers map[string]string
}

func (r RawCallback) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return strings.TrimSpace(r.Headers[strings.ToLower(key)])
}

// CallbackEvent: hasil ekstraksi provider-specific.
// Status sudah dinormalkan ke kosakata bersama (APPROVED/SUCCESS/PAID/PENDING/FAILED/REJECTED/CANCELLED).
type CallbackEvent struct {
	Reference string
	Status    string
	RawStatus string
}

type StatusResult struct {
	Reference string
	Status    string
	Raw       []byte
}

type Adapter interface {
	Name() string
	Online() bool
	SupportsSplit() bool
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	VerifySignature(raw RawCallback) bool
	ParseCallback(raw RawCallback) (*CallbackEvent, error)
	QueryStatus(ctx context.Context, reference string) (*StatusResult, error)
}

/* =========================================================
   Registry
========================================================= */

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[strings.ToUpper(a.Name())] = a
	}
	return r
}

// Get: lookup case-insensitive.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToUpper(strings.TrimSpace(name))]
	return a, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Online mengembalikan adapter yang bisa di-poll (dipakai sweeper).
func (r *Registry) Online() []string {
	out := []string{}
	for _, name := range r.Names() {
		if r.adapters[name].Online() {
			out = append(out, name)
		}
	}
	return out
}
