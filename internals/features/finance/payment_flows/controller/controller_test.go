package controller

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
	"schoolku_backend/internals/features/finance/payment_flows/repository"
	"schoolku_backend/internals/features/finance/payment_flows/service"
	helper "schoolku_backend/internals/helpers"
	helperAuth "schoolku_backend/internals/helpers/auth"
)

const webhookSecret = "whsec_test"

type nopAuditor struct{}

func (nopAuditor) Record(service.AuditEvent) {}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	app      *fiber.App
	school   uuid.UUID
	actor    uuid.UUID
	pspCode  atomic.Int32
	pspCalls atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, school: uuid.New(), actor: uuid.New()}
	h.pspCode.Store(http.StatusOK)

	psp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := h.pspCalls.Add(1)
		code := int(h.pspCode.Load())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = w.Write([]byte(`{"message":"account rejected"}`))
			return
		}
		_, _ = w.Write([]byte(`{"transaction_id":"T-` + strconv.Itoa(int(n)) + `","payment_url":"https://pay.example/T"}`))
	}))
	t.Cleanup(psp.Close)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	h.db = db

	adapters := provider.NewRegistry(
		provider.NewHosted(provider.HostedConfig{
			BaseURL:       psp.URL,
			APIKey:        "key",
			APISecret:     "secret",
			WebhookSecret: webhookSecret,
		}),
		provider.NewCash(),
	)
	flows := repository.NewFlowRepository(db)
	callbacks := repository.NewCallbackRepository(db)
	accounts := repository.NewPayoutAccountRepository(db)

	registry := service.NewPayoutRegistry(accounts, adapters, nopAuditor{})
	manager := service.NewFlowManager(flows, callbacks, registry, adapters,
		service.StaticPricing{model.ProviderOnlinePSP: decimal.RequireFromString("0.05")},
		nopAuditor{}, service.FlowManagerConfig{})
	reconciler := service.NewReconciler(flows, callbacks, adapters, nopAuditor{})

	app := fiber.New(fiber.Config{
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ErrorHandler: helper.FiberErrorHandler,
	})
	wh := NewWebhookController(reconciler)
	app.Post("/api/webhooks/payments/:provider", wh.Handle)

	admin := app.Group("/api/a", func(c *fiber.Ctx) error {
		if c.Get("X-Test-Anonymous") == "" {
			c.Locals(helperAuth.LocSchoolID, c.Get("X-Test-School", h.school.String()))
			c.Locals(helperAuth.LocUserID, h.actor.String())
		}
		return c.Next()
	})
	pf := NewPaymentFlowController(manager, nil)
	admin.Post("/payment-flows", pf.Create)
	admin.Get("/payment-flows", pf.List)
	admin.Get("/payment-flows/:id", pf.GetByID)
	admin.Get("/payment-flows/:id/callbacks", pf.Callbacks)
	pa := NewPayoutAccountController(registry, nil)
	admin.Post("/payout-accounts", pa.Create)
	admin.Get("/payout-accounts", pa.List)
	admin.Post("/payout-accounts/:id/verify", pa.Verify)
	admin.Post("/payout-accounts/:id/deactivate", pa.Deactivate)

	h.app = app
	return h
}

type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	ErrorCode  string              `json:"error_code"`
	Data       map[string]any      `json:"data"`
	List       []map[string]any    `json:"-"`
	Errors     map[string][]string `json:"errors"`
	Pagination helper.Pagination   `json:"pagination"`
}

func (h *harness) do(method, path string, body []byte, headers map[string]string) (int, envelope) {
	h.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	var shape struct {
		Data any `json:"data"`
	}
	if err := sonic.Unmarshal(raw, &shape); err != nil {
		h.t.Fatalf("decode %s: %v", raw, err)
	}
	if list, ok := shape.Data.([]any); ok {
		for _, it := range list {
			if m, ok := it.(map[string]any); ok {
				env.List = append(env.List, m)
			}
		}
		var rest struct {
			Success    bool              `json:"success"`
			Message    string            `json:"message"`
			Pagination helper.Pagination `json:"pagination"`
		}
		_ = sonic.Unmarshal(raw, &rest)
		env.Success, env.Message, env.Pagination = rest.Success, rest.Message, rest.Pagination
		return resp.StatusCode, env
	}
	if err := sonic.Unmarshal(raw, &env); err != nil {
		h.t.Fatalf("decode %s: %v", raw, err)
	}
	return resp.StatusCode, env
}

func (h *harness) post(path, body string) (int, envelope) {
	return h.do(fiber.MethodPost, path, []byte(body), nil)
}

func (h *harness) get(path string) (int, envelope) {
	return h.do(fiber.MethodGet, path, nil, nil)
}

func (h *harness) countFlows() int64 {
	var n int64
	h.db.Model(&model.PaymentFlow{}).Count(&n)
	return n
}

func (h *harness) webhook(providerName string, payload map[string]any, sign bool) (int, envelope) {
	h.t.Helper()
	cp := map[string]any{}
	for k, v := range payload {
		cp[k] = v
	}
	if sign {
		sig, err := provider.SignHostedPayload(webhookSecret, payload)
		if err != nil {
			h.t.Fatalf("sign: %v", err)
		}
		cp["signature"] = sig
	}
	body, _ := sonic.Marshal(cp)
	return h.do(fiber.MethodPost, "/api/webhooks/payments/"+providerName, body, nil)
}

// daftar + verifikasi payout account ONLINE_PSP via API
func (h *harness) onboardSchool() string {
	h.t.Helper()
	code, env := h.post("/api/a/payout-accounts",
		`{"payout_account_provider":"online_psp","payout_account_identifier":"ACC-1","payout_account_name":"Rekening SPP"}`)
	if code != fiber.StatusCreated {
		h.t.Fatalf("register account: %d %+v", code, env)
	}
	id := env.Data["payout_account_id"].(string)
	code, env = h.post("/api/a/payout-accounts/"+id+"/verify", "")
	if code != fiber.StatusOK || env.Data["payout_account_selectable"] != true {
		h.t.Fatalf("verify account: %d %+v", code, env)
	}
	return id
}

/* ===================== flows ===================== */

func TestCreateSaaSFlow(t *testing.T) {
	h := newHarness(t)

	code, env := h.post("/api/a/payment-flows", `{"flow_type":"saas","amount":"5000","provider":"online_psp"}`)
	if code != fiber.StatusCreated {
		t.Fatalf("status = %d, body %+v", code, env)
	}
	if env.Data["payment_flow_destination"] != "ACADEMIA" || env.Data["payment_flow_status"] != "PENDING" {
		t.Fatalf("unexpected flow %+v", env.Data)
	}
	if env.Data["payment_flow_amount"] != "5000.00" || env.Data["payment_flow_currency"] != "XOF" {
		t.Fatalf("amount/currency %+v", env.Data)
	}
	if env.Data["payment_flow_provider_reference"] != "T-1" {
		t.Fatalf("reference = %v", env.Data["payment_flow_provider_reference"])
	}
}

func TestCreateTuitionWithoutPayoutAccount(t *testing.T) {
	h := newHarness(t)

	code, env := h.post("/api/a/payment-flows",
		`{"flow_type":"TUITION","amount":25000,"provider":"ONLINE_PSP","student_id":"`+uuid.NewString()+`"}`)
	if code != fiber.StatusUnprocessableEntity || env.ErrorCode != "PREREQUISITE_NOT_MET" {
		t.Fatalf("got %d %+v", code, env)
	}
	if n := h.countFlows(); n != 0 {
		t.Fatalf("flows persisted = %d, want 0", n)
	}
	if h.pspCalls.Load() != 0 {
		t.Fatal("PSP must not be called")
	}
}

func TestCreateFlowInputErrors(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name string
		body string
		code int
		err  string
	}{
		{"bad flow type", `{"flow_type":"DONATION","amount":1,"provider":"CASH"}`, fiber.StatusBadRequest, "INVALID_FLOW_TYPE"},
		{"negative amount", `{"flow_type":"SAAS","amount":-1,"provider":"CASH"}`, fiber.StatusBadRequest, "INVALID_AMOUNT"},
		{"missing provider", `{"flow_type":"SAAS","amount":1}`, fiber.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"missing amount", `{"flow_type":"SAAS","provider":"CASH"}`, fiber.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"null amount", `{"flow_type":"SAAS","amount":null,"provider":"CASH"}`, fiber.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"missing student", `{"flow_type":"TUITION","amount":1,"provider":"CASH"}`, fiber.StatusUnprocessableEntity, "MISSING_STUDENT"},
		{"unknown provider", `{"flow_type":"SAAS","amount":1,"provider":"PAYPAL"}`, fiber.StatusUnprocessableEntity, "UNSUPPORTED_PROVIDER"},
		{"broken json", `{"flow_type":`, fiber.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := h.post("/api/a/payment-flows", tc.body)
			if code != tc.code || env.ErrorCode != tc.err {
				t.Fatalf("got %d %q, want %d %q", code, env.ErrorCode, tc.code, tc.err)
			}
		})
	}
}

func TestCreateFlowProviderRejects(t *testing.T) {
	h := newHarness(t)
	h.pspCode.Store(http.StatusBadRequest)

	code, env := h.post("/api/a/payment-flows", `{"flow_type":"SAAS","amount":100,"provider":"ONLINE_PSP"}`)
	if code != fiber.StatusBadGateway || env.ErrorCode != "PROVIDER_ERROR" {
		t.Fatalf("got %d %+v", code, env)
	}
}

func TestAdminRequiresTenant(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(fiber.MethodGet, "/api/a/payment-flows", nil, map[string]string{"X-Test-Anonymous": "1"})
	if code != fiber.StatusUnauthorized || env.ErrorCode != "UNAUTHORIZED" {
		t.Fatalf("got %d %+v", code, env)
	}
}

func TestGetFlowIsTenantScoped(t *testing.T) {
	h := newHarness(t)

	_, env := h.post("/api/a/payment-flows", `{"flow_type":"SAAS","amount":100,"provider":"CASH"}`)
	id := env.Data["payment_flow_id"].(string)

	code, _ := h.get("/api/a/payment-flows/" + id)
	if code != fiber.StatusOK {
		t.Fatalf("own tenant status = %d", code)
	}
	code, env = h.do(fiber.MethodGet, "/api/a/payment-flows/"+id, nil, map[string]string{"X-Test-School": uuid.NewString()})
	if code != fiber.StatusNotFound || env.ErrorCode != "FLOW_NOT_FOUND" {
		t.Fatalf("other tenant got %d %+v", code, env)
	}
	code, _ = h.get("/api/a/payment-flows/not-a-uuid")
	if code != fiber.StatusBadRequest {
		t.Fatalf("bad id status = %d", code)
	}
}

func TestListFlowsPaged(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		if code, env := h.post("/api/a/payment-flows", `{"flow_type":"SAAS","amount":100,"provider":"CASH"}`); code != fiber.StatusCreated {
			t.Fatalf("create: %d %+v", code, env)
		}
	}

	code, env := h.get("/api/a/payment-flows?provider=cash&per_page=2")
	if code != fiber.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(env.List) != 2 || env.Pagination.Total != 3 || !env.Pagination.HasNext {
		t.Fatalf("page = %d items, pagination %+v", len(env.List), env.Pagination)
	}

	code, env = h.get("/api/a/payment-flows?status=bogus")
	if code != fiber.StatusUnprocessableEntity {
		t.Fatalf("invalid filter status = %d %+v", code, env)
	}
}

func TestTuitionCashRetriedAfterVerification(t *testing.T) {
	h := newHarness(t)
	body := `{"flow_type":"TUITION","amount":20000,"provider":"CASH","student_id":"` + uuid.NewString() + `"}`

	code, env := h.post("/api/a/payment-flows", body)
	if code != fiber.StatusUnprocessableEntity || env.ErrorCode != "PREREQUISITE_NOT_MET" {
		t.Fatalf("before verification: %d %+v", code, env)
	}

	_, env = h.post("/api/a/payout-accounts",
		`{"payout_account_provider":"CASH","payout_account_identifier":"KASIR-1","payout_account_name":"Kasir TU"}`)
	id := env.Data["payout_account_id"].(string)
	if code, env = h.post("/api/a/payout-accounts/"+id+"/verify", ""); code != fiber.StatusOK {
		t.Fatalf("verify: %d %+v", code, env)
	}

	code, env = h.post("/api/a/payment-flows", body)
	if code != fiber.StatusCreated {
		t.Fatalf("after verification: %d %+v", code, env)
	}
	if env.Data["payment_flow_status"] != "PENDING" || env.Data["payment_flow_payment_url"] != nil {
		t.Fatalf("cash flow %+v", env.Data)
	}
	if h.pspCalls.Load() != 0 {
		t.Fatal("offline provider must not reach the PSP")
	}
}

/* ===================== payout accounts ===================== */

func TestPayoutAccountLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.onboardSchool()

	code, env := h.post("/api/a/payout-accounts",
		`{"payout_account_provider":"ONLINE_PSP","payout_account_identifier":"ACC-2","payout_account_name":"Cadangan"}`)
	if code != fiber.StatusConflict || env.ErrorCode != "DUPLICATE_ACTIVE_ACCOUNT" {
		t.Fatalf("second selectable got %d %+v", code, env)
	}

	code, env = h.post("/api/a/payout-accounts/"+id+"/deactivate", "")
	if code != fiber.StatusOK || env.Data["payout_account_is_active"] != false {
		t.Fatalf("deactivate got %d %+v", code, env)
	}

	code, env = h.post("/api/a/payout-accounts/"+uuid.NewString()+"/verify", "")
	if code != fiber.StatusNotFound || env.ErrorCode != "ACCOUNT_NOT_FOUND" {
		t.Fatalf("verify unknown got %d %+v", code, env)
	}

	code, env = h.post("/api/a/payout-accounts", `{"payout_account_provider":"PAYPAL","payout_account_identifier":"X","payout_account_name":"X"}`)
	if code != fiber.StatusUnprocessableEntity || env.ErrorCode != "UNSUPPORTED_PROVIDER" {
		t.Fatalf("unknown provider got %d %+v", code, env)
	}

	code, env = h.get("/api/a/payout-accounts")
	if code != fiber.StatusOK || len(env.List) != 1 {
		t.Fatalf("list got %d, %d items", code, len(env.List))
	}
}

/* ===================== webhook ===================== */

func TestTuitionFlowPaidByWebhook(t *testing.T) {
	h := newHarness(t)
	h.onboardSchool()

	code, env := h.post("/api/a/payment-flows",
		`{"flow_type":"TUITION","amount":25000,"provider":"ONLINE_PSP","student_id":"`+uuid.NewString()+`"}`)
	if code != fiber.StatusCreated {
		t.Fatalf("create tuition: %d %+v", code, env)
	}
	if env.Data["payment_flow_destination"] != "SCHOOL" {
		t.Fatalf("destination = %v", env.Data["payment_flow_destination"])
	}
	flowID := env.Data["payment_flow_id"].(string)
	ref := env.Data["payment_flow_provider_reference"].(string)

	payload := map[string]any{"transaction_id": ref, "status": "APPROVED", "amount": 25000}
	code, env = h.webhook("online_psp", payload, true)
	if code != fiber.StatusOK || env.Message != "processed" || env.Data["outcome"] != "applied" {
		t.Fatalf("first delivery: %d %+v", code, env)
	}

	// replay: tetap 200, tidak ada transisi baru
	code, env = h.webhook("online_psp", payload, true)
	if code != fiber.StatusOK || env.Data["outcome"] != "duplicate" {
		t.Fatalf("replay: %d %+v", code, env)
	}

	_, env = h.get("/api/a/payment-flows/" + flowID)
	if env.Data["payment_flow_status"] != "PAID" || env.Data["payment_flow_paid_at"] == nil {
		t.Fatalf("flow after webhook %+v", env.Data)
	}

	code, env = h.get("/api/a/payment-flows/" + flowID + "/callbacks")
	if code != fiber.StatusOK || len(env.List) != 2 {
		t.Fatalf("callbacks: %d, %d rows", code, len(env.List))
	}
}

func TestWebhookStatusMapping(t *testing.T) {
	h := newHarness(t)

	code, env := h.webhook("ONLINE_PSP", map[string]any{"transaction_id": "T-x", "status": "APPROVED"}, false)
	if code != fiber.StatusUnauthorized || env.ErrorCode != "INVALID_SIGNATURE" {
		t.Fatalf("unsigned: %d %+v", code, env)
	}

	code, env = h.webhook("STRIPE", map[string]any{"transaction_id": "T-x"}, true)
	if code != fiber.StatusNotFound || env.ErrorCode != "UNSUPPORTED_PROVIDER" {
		t.Fatalf("unknown provider: %d %+v", code, env)
	}

	code, env = h.webhook("ONLINE_PSP", map[string]any{"transaction_id": "NOPE", "status": "APPROVED"}, true)
	if code != fiber.StatusOK || env.Message != "ignored" {
		t.Fatalf("unknown reference: %d %+v", code, env)
	}

	code, env = h.webhook("ONLINE_PSP", map[string]any{"status": "APPROVED"}, true)
	if code != fiber.StatusOK || env.Message != "ignored" {
		t.Fatalf("malformed: %d %+v", code, env)
	}

	code, _ = h.do(fiber.MethodPost, "/api/webhooks/payments/ONLINE_PSP", []byte("not json"), nil)
	if code != fiber.StatusUnauthorized {
		t.Fatalf("garbage body: %d", code)
	}
}
