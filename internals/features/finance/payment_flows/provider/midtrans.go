package provider

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/bytedance/sonic"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

/* =========================================================
   Midtrans (Snap + Core API)
   - Tidak ada split → hanya boleh untuk flow SAAS
   - Signature: SHA512(order_id + status_code + gross_amount + ServerKey)
========================================================= */

type MidtransConfig struct {
	ServerKey     string
	Production    bool
	AllowUnsigned bool
}

type Midtrans struct {
	cfg  MidtransConfig
	snap snap.Client
	core coreapi.Client
}

func NewMidtrans(cfg MidtransConfig) *Midtrans {
	m := &Midtrans{cfg: cfg}
	if cfg.ServerKey != "" {
		env := midtrans.Sandbox
		if cfg.Production {
			env = midtrans.Production
		}
		m.snap.New(cfg.ServerKey, env)
		m.core.New(cfg.ServerKey, env)
	}
	return m
}

func (m *Midtrans) Name() string        { return model.ProviderMidtrans }
func (m *Midtrans) Online() bool        { return true }
func (m *Midtrans) SupportsSplit() bool { return false }

func (m *Midtrans) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if m.cfg.ServerKey == "" {
		return nil, ErrNotConfigured
	}
	if req.Split != nil {
		return nil, ErrSplitNotSupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(req.Currency, "IDR") {
		return nil, &ProviderError{Provider: m.Name(), Message: "currency " + req.Currency + " not supported (IDR only)"}
	}

	gross := req.Amount.Round(0).IntPart()
	name := firstNonEmpty(req.Description, "Langganan Platform")
	sreq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: gross,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Reference,
				Price: gross,
				Qty:   1,
				Name:  truncate(name, 50),
			},
		},
		CustomField1: truncate(req.IdempotencyKey, 40),
	}

	resp, merr := m.snap.CreateTransaction(sreq)
	if merr != nil {
		return nil, &ProviderError{Provider: m.Name(), StatusCode: merr.StatusCode, Message: merr.Message}
	}
	return &InitiateResult{
		PaymentURL:        resp.RedirectURL,
		ProviderReference: req.Reference,
	}, nil
}

func (m *Midtrans) QueryStatus(ctx context.Context, reference string) (*StatusResult, error) {
	if m.cfg.ServerKey == "" {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, merr := m.core.CheckTransaction(reference)
	if merr != nil {
		return nil, &ProviderError{Provider: m.Name(), StatusCode: merr.StatusCode, Message: merr.Message}
	}
	raw, _ := sonic.Marshal(resp)
	return &StatusResult{
		Reference: reference,
		Status:    NormalizeMidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		Raw:       raw,
	}, nil
}

type midtransNotif struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

func (m *Midtrans) VerifySignature(raw RawCallback) bool {
	if m.cfg.ServerKey == "" {
		if m.cfg.AllowUnsigned {
			log.Printf("[SECURITY] %s webhook signature verification BYPASSED (no server key, unsigned mode enabled)", m.Name())
			return true
		}
		log.Printf("[SECURITY] %s server key not configured, rejecting callback", m.Name())
		return false
	}

	var n midtransNotif
	if err := sonic.Unmarshal(raw.Body, &n); err != nil {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	if want == "" {
		return false
	}
	got := MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, m.cfg.ServerKey)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (m *Midtrans) ParseCallback(raw RawCallback) (*CallbackEvent, error) {
	var n midtransNotif
	if err := sonic.Unmarshal(raw.Body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(n.OrderID) == "" {
		return nil, fmt.Errorf("%w: order_id kosong", ErrMalformedPayload)
	}
	return &CallbackEvent{
		Reference: strings.TrimSpace(n.OrderID),
		Status:    NormalizeMidtransStatus(n.TransactionStatus, n.FraudStatus),
		RawStatus: n.TransactionStatus,
	}, nil
}

// MidtransSignature = hex(SHA512(order_id + status_code + gross_amount + server_key)).
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

// NormalizeMidtransStatus: status native Midtrans → kosakata bersama.
func NormalizeMidtransStatus(transactionStatus, fraudStatus string) string {
	ts := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch ts {
	case "capture":
		switch fraud {
		case "accept", "":
			return "SUCCESS"
		case "challenge":
			return "PENDING"
		}
		return "REJECTED"
	case "settlement":
		return "SUCCESS"
	case "pending":
		return "PENDING"
	case "deny":
		return "REJECTED"
	case "cancel", "expire":
		return "CANCELLED"
	case "failure":
		return "FAILED"
	}
	return strings.ToUpper(ts)
}

/* =========================================================
   Utils
========================================================= */

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
