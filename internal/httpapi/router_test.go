package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/store/memory"
)

type stubInvoices struct {
	err error
}

func (s stubInvoices) CreateInvoice(_ context.Context, _ decimal.Decimal, _, correlationID string) (*cryptopay.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cryptopay.Invoice{InvoiceID: "900", PayURL: "https://pay.example/" + correlationID}, nil
}

type testEnv struct {
	srv   *httptest.Server
	store *memory.Store
	svc   *service.Service
}

func newEnv(t *testing.T, opts ...service.Option) *testEnv {
	t.Helper()
	st := memory.New()
	logger := zaptest.NewLogger(t)
	svc := service.NewService(st, service.Config{DefaultAsset: "TON"}, append(opts, service.WithLogger(logger))...)
	srv := httptest.NewServer(NewRouter(NewHandler(svc, logger), logger, time.Second))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: st, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode, out
}

func webhookBody(ref, amount, asset string) string {
	return fmt.Sprintf(`{"update_id":1,"update_type":"invoice_paid","payload":{"invoice_id":900,"status":"paid","asset":%q,"amount":%q,"payload":%q}}`,
		asset, amount, ref)
}

func TestDepositWebhookFlow(t *testing.T) {
	env := newEnv(t, service.WithInvoiceCreator(stubInvoices{}))

	status, body := env.do(t, http.MethodPost, "/api/deposit", `{"account_id":"42","amount":10,"asset":"TON"}`)
	if status != http.StatusOK {
		t.Fatalf("deposit: status %d body %v", status, body)
	}
	txID, _ := body["transaction_id"].(string)
	if txID == "" || body["invoice_id"] != "900" || body["pay_url"] != "https://pay.example/"+txID {
		t.Fatalf("deposit body: %v", body)
	}

	for i := 0; i < 3; i++ {
		status, body = env.do(t, http.MethodPost, "/webhook/crypto-bot", webhookBody(txID, "10", "TON"))
		if status != http.StatusOK || body["status"] != "success" {
			t.Fatalf("webhook #%d: status %d body %v", i, status, body)
		}
	}

	status, body = env.do(t, http.MethodGet, "/api/balance/42", "")
	if status != http.StatusOK || body["balance"] != "10" {
		t.Errorf("balance: status %d body %v", status, body)
	}
}

func TestDepositWithoutInvoiceCreator(t *testing.T) {
	env := newEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/deposit", `{"telegram_id":12345,"amount":"0.5"}`)
	if status != http.StatusOK {
		t.Fatalf("status %d body %v", status, body)
	}
	if body["pay_url"] != "" {
		t.Errorf("pay_url: got %v, want empty", body["pay_url"])
	}

	pending, err := env.svc.Ledger.ListPending(context.Background(), "12345")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Asset != "TON" {
		t.Errorf("pending: %+v", pending)
	}
}

func TestDepositInvoiceFailure(t *testing.T) {
	env := newEnv(t, service.WithInvoiceCreator(stubInvoices{err: errors.New("down")}))

	status, body := env.do(t, http.MethodPost, "/api/deposit", `{"account_id":"a","amount":"1"}`)
	if status != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502 (%v)", status, body)
	}
	if body["transaction_id"] == "" || body["transaction_id"] == nil {
		t.Errorf("transaction_id missing: %v", body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	dep, err := env.svc.Ledger.RequestDeposit(ctx, "funded", decimal.NewFromInt(5), "TON")
	if err != nil {
		t.Fatalf("RequestDeposit: %v", err)
	}
	if _, err := env.svc.Ledger.ConfirmDeposit(ctx, dep.ID, decimal.NewFromInt(5), "TON"); err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/withdraw", `{`, http.StatusBadRequest},
		{"bad amount", http.MethodPost, "/api/withdraw", `{"account_id":"funded","amount":"abc","destination":"x"}`, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/api/withdraw", `{"account_id":"funded","amount":0,"destination":"x"}`, http.StatusBadRequest},
		{"missing destination", http.MethodPost, "/api/withdraw", `{"account_id":"funded","amount":1}`, http.StatusBadRequest},
		{"insufficient", http.MethodPost, "/api/withdraw", `{"account_id":"funded","amount":6,"destination":"x"}`, http.StatusBadRequest},
		{"ok", http.MethodPost, "/api/withdraw", `{"telegram_id":"funded","amount":"2","address":"x"}`, http.StatusOK},
		{"unknown withdrawal", http.MethodPost, "/api/withdrawals/nope/complete", ``, http.StatusNotFound},
		{"complete a deposit", http.MethodPost, "/api/withdrawals/" + dep.ID + "/complete", ``, http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/api/transactions/nope", ``, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("status: got %d, want %d (%v)", status, tt.want, body)
			}
			if tt.want != http.StatusOK && body["error"] == nil {
				t.Errorf("error reason missing: %v", body)
			}
		})
	}

	status, body := env.do(t, http.MethodGet, "/api/balance/funded", "")
	if status != http.StatusOK || body["balance"] != "3" {
		t.Errorf("balance after withdraw: %d %v", status, body)
	}
}

func TestWithdrawalFinalizationRoutes(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	dep, _ := env.svc.Ledger.RequestDeposit(ctx, "w", decimal.NewFromInt(4), "TON")
	if _, err := env.svc.Ledger.ConfirmDeposit(ctx, dep.ID, decimal.NewFromInt(4), "TON"); err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}

	status, body := env.do(t, http.MethodPost, "/api/withdraw", `{"account_id":"w","amount":4,"destination":"addr"}`)
	if status != http.StatusOK || body["new_balance"] != "0" {
		t.Fatalf("withdraw: %d %v", status, body)
	}
	id := body["transaction_id"].(string)

	status, body = env.do(t, http.MethodGet, "/api/transactions/pending?account_id=w", "")
	if status != http.StatusOK {
		t.Fatalf("pending: %d %v", status, body)
	}
	if list, _ := body["transactions"].([]any); len(list) != 1 {
		t.Errorf("pending list: %v", body)
	}

	if status, body = env.do(t, http.MethodPost, "/api/withdrawals/"+id+"/fail", ""); status != http.StatusOK {
		t.Fatalf("fail: %d %v", status, body)
	}
	if status, _ = env.do(t, http.MethodPost, "/api/withdrawals/"+id+"/fail", ""); status != http.StatusConflict {
		t.Errorf("second fail: got %d, want 409", status)
	}
	if status, body = env.do(t, http.MethodGet, "/api/balance/w", ""); body["balance"] != "4" {
		t.Errorf("balance after refund: %d %v", status, body)
	}
}

func TestWebhookAcknowledgesJunk(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `hello`},
		{"other update", `{"update_type":"invoice_expired","payload":{"status":"expired"}}`},
		{"unknown ref", webhookBody("missing", "1", "TON")},
		{"no payload", `{"update_type":"invoice_paid","payload":{"status":"paid","amount":"1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/webhook/crypto-bot", tt.body)
			if status != http.StatusOK || body["status"] != "success" {
				t.Errorf("got %d %v, want 200 success", status, body)
			}
		})
	}
}

func TestWebhookStorageFailure(t *testing.T) {
	env := newEnv(t)
	dep, err := env.svc.Ledger.RequestDeposit(context.Background(), "x", decimal.NewFromInt(1), "TON")
	if err != nil {
		t.Fatalf("RequestDeposit: %v", err)
	}
	_ = env.store.Close()

	status, _ := env.do(t, http.MethodPost, "/webhook/crypto-bot", webhookBody(dep.ID, "1", "TON"))
	if status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", status)
	}

	status, _ = env.do(t, http.MethodGet, "/healthz", "")
	if status != http.StatusServiceUnavailable {
		t.Errorf("healthz: got %d, want 503", status)
	}
}

func TestHomeAndHealth(t *testing.T) {
	env := newEnv(t)

	resp, err := http.Get(env.srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /: %d", resp.StatusCode)
	}

	status, body := env.do(t, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz: %d %v", status, body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", service.ErrInvalidInput), http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrInsufficientFunds, http.StatusBadRequest},
		{store.ErrConflict, http.StatusConflict},
		{store.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("x: %w: %w", store.ErrStorageUnavailable, errors.New("disk")), http.StatusServiceUnavailable},
		{service.ErrInvoiceUnavailable, http.StatusBadGateway},
		{fmt.Errorf("x: %w: %w", store.ErrConstraintViolation, errors.New("check")), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", store.ErrCorruptRecord), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, http.NotFoundHandler(), ServerConfig{ShutdownTimeout: time.Second}, zap.NewNop())
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
