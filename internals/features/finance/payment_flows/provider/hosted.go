package provider

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

/* =========================================================
   Hosted checkout PSP (ONLINE_PSP)
   - POST {base}/v1/payments          → payment_url + transaction_id
   - GET  {base}/v1/payments/{ref}    → status
   - webhook: hex(HMAC-SHA256(secret, canonical JSON tanpa "signature"))
========================================================= */

const (
	hostedSignatureField  = "signature"
	hostedSignatureHeader = "X-Signature"
	maxErrorBody          = 256
)

type HostedConfig struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	WebhookSecret string
	AllowUnsigned bool
	Timeout       time.Duration
	MaxRetries    int           // retry tambahan khusus Initiate
	Backoff       time.Duration // linear: Backoff * attempt
}

type Hosted struct {
	cfg  HostedConfig
	wait func(ctx context.Context, d time.Duration) error
}

func NewHosted(cfg HostedConfig) *Hosted {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 300 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Hosted{cfg: cfg, wait: waitBackoff}
}

func (h *Hosted) Name() string        { return model.ProviderOnlinePSP }
func (h *Hosted) Online() bool        { return true }
func (h *Hosted) SupportsSplit() bool { return true }

func (h *Hosted) configured() bool {
	return h.cfg.BaseURL != "" && h.cfg.APIKey != "" && h.cfg.APISecret != ""
}

type hostedSplit struct {
	Account    string `json:"account"`
	Commission string `json:"commission"`
}

type hostedInitiateBody struct {
	Reference   string         `json:"reference"`
	Amount      string         `json:"amount"`
	Currency    string         `json:"currency"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Split       bool           `json:"split"`
	SplitDetail *hostedSplit   `json:"split_detail,omitempty"`
}

type hostedInitiateResponse struct {
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
	ExpiresAt     string `json:"expires_at"`
}

type hostedStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type hostedErrorResponse struct {
	Message string `json:"message"`
}

func (h *Hosted) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if !h.configured() {
		return nil, ErrNotConfigured
	}

	body := hostedInitiateBody{
		Reference:   req.Reference,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	if req.Split != nil {
		body.Split = true
		body.SplitDetail = &hostedSplit{
			Account:    req.Split.AccountIdentifier,
			Commission: req.Split.Commission.StringFixed(2),
		}
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, err
	}

	attempts := 1 + h.cfg.MaxRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code, resp, errs := h.do(ctx, fiber.MethodPost, "/v1/payments", payload, req.IdempotencyKey)
		switch {
		case len(errs) > 0:
			lastErr = &ProviderError{Provider: h.Name(), Message: "transport: " + errors.Join(errs...).Error()}
		case code >= 500:
			lastErr = h.providerError(code, resp)
		case code < 200 || code >= 300:
			return nil, h.providerError(code, resp)
		default:
			return h.parseInitiate(resp)
		}

		if attempt < attempts {
			log.Printf("[PSP] initiate ref=%s attempt %d/%d gagal: %v", req.Reference, attempt, attempts, lastErr)
			if err := h.wait(ctx, h.cfg.Backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// waitBackoff berhenti lebih awal kalau ctx selesai.
func waitBackoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (h *Hosted) parseInitiate(resp []byte) (*InitiateResult, error) {
	var out hostedInitiateResponse
	if err := sonic.Unmarshal(resp, &out); err != nil {
		return nil, &ProviderError{Provider: h.Name(), StatusCode: fiber.StatusOK, Message: "invalid response: " + err.Error()}
	}
	if strings.TrimSpace(out.TransactionID) == "" {
		return nil, &ProviderError{Provider: h.Name(), StatusCode: fiber.StatusOK, Message: "response missing transaction_id"}
	}
	res := &InitiateResult{
		PaymentURL:        out.PaymentURL,
		ProviderReference: out.TransactionID,
	}
	if out.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
			res.ExpiresAt = &t
		}
	}
	return res, nil
}

func (h *Hosted) QueryStatus(ctx context.Context, reference string) (*StatusResult, error) {
	if !h.configured() {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, resp, errs := h.do(ctx, fiber.MethodGet, "/v1/payments/"+url.PathEscape(reference), nil, "")
	if len(errs) > 0 {
		return nil, &ProviderError{Provider: h.Name(), Message: "transport: " + errors.Join(errs...).Error()}
	}
	if code < 200 || code >= 300 {
		return nil, h.providerError(code, resp)
	}
	var out hostedStatusResponse
	if err := sonic.Unmarshal(resp, &out); err != nil {
		return nil, &ProviderError{Provider: h.Name(), StatusCode: code, Message: "invalid response: " + err.Error()}
	}
	ref := out.TransactionID
	if ref == "" {
		ref = reference
	}
	return &StatusResult{Reference: ref, Status: strings.ToUpper(strings.TrimSpace(out.Status)), Raw: resp}, nil
}

func (h *Hosted) do(ctx context.Context, method, path string, body []byte, idemKey string) (int, []byte, []error) {
	var a *fiber.Agent
	switch method {
	case fiber.MethodPost:
		a = fiber.Post(h.cfg.BaseURL + path)
	default:
		a = fiber.Get(h.cfg.BaseURL + path)
	}

	a.Set("X-Api-Key", h.cfg.APIKey).
		Set("X-Api-Secret", h.cfg.APISecret).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		Timeout(h.attemptTimeout(ctx))
	if idemKey != "" {
		a.Set("Idempotency-Key", idemKey)
	}
	if body != nil {
		a.ContentType(fiber.MIMEApplicationJSON).Body(body)
	}
	return a.Bytes()
}

// attemptTimeout: min(config timeout, sisa deadline ctx).
func (h *Hosted) attemptTimeout(ctx context.Context) time.Duration {
	t := h.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < t {
			t = left
		}
	}
	return t
}

func (h *Hosted) providerError(code int, body []byte) *ProviderError {
	msg := ""
	var er hostedErrorResponse
	if err := sonic.Unmarshal(body, &er); err == nil {
		msg = strings.TrimSpace(er.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", code)
	}
	return &ProviderError{Provider: h.Name(), StatusCode: code, Message: msg}
}

/* =========================================================
   Webhook
========================================================= */

func (h *Hosted) VerifySignature(raw RawCallback) bool {
	if h.cfg.WebhookSecret == "" {
		if h.cfg.AllowUnsigned {
			log.Printf("[SECURITY] %s webhook signature verification BYPASSED (no secret, unsigned mode enabled)", h.Name())
			return true
		}
		log.Printf("[SECURITY] %s webhook secret not configured, rejecting callback", h.Name())
		return false
	}

	payload, err := decodePayload(raw.Body)
	if err != nil {
		return false
	}
	sig := stringField(payload, hostedSignatureField)
	if sig == "" {
		sig = raw.Header(hostedSignatureHeader)
	}
	if sig == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	canon, err := CanonicalPayload(payload, hostedSignatureField)
	if err != nil {
		return false
	}
	return hmac.Equal(hmacSHA256(h.cfg.WebhookSecret, canon), got)
}

func (h *Hosted) ParseCallback(raw RawCallback) (*CallbackEvent, error) {
	payload, err := decodePayload(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ref := stringField(payload, "transaction_id")
	if ref == "" {
		return nil, fmt.Errorf("%w: transaction_id kosong", ErrMalformedPayload)
	}
	status := stringField(payload, "status")
	return &CallbackEvent{
		Reference: ref,
		Status:    strings.ToUpper(status),
		RawStatus: status,
	}, nil
}
