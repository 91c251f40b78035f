package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/utils"
)

const maxBodySize = 1 << 20

type Handler struct {
	ledger     *service.LedgerService
	reconciler *service.Reconciler
	logger     *zap.Logger
}

func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: svc.Ledger, reconciler: svc.Reconciler, logger: logger}
}

// Telegram bot clients send telegram_id and address; both spellings are
// accepted.
type depositRequest struct {
	AccountID  cryptopay.Number `json:"account_id"`
	TelegramID cryptopay.Number `json:"telegram_id"`
	Amount     cryptopay.Number `json:"amount"`
	Asset      string           `json:"asset"`
}

type withdrawRequest struct {
	depositRequest
	Destination string `json:"destination"`
	Address     string `json:"address"`
}

func (r depositRequest) accountID() string {
	if r.AccountID != "" {
		return r.AccountID.String()
	}
	return r.TelegramID.String()
}

func (r withdrawRequest) destination() string {
	if r.Destination != "" {
		return r.Destination
	}
	return r.Address
}

type transactionView struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      string    `json:"amount"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Asset       string    `json:"asset"`
	Destination string    `json:"destination,omitempty"`
	ExternalRef string    `json:"external_ref,omitempty"`
	InvoiceID   string    `json:"invoice_id,omitempty"`
	PayURL      string    `json:"pay_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func viewOf(tx *store.Transaction) transactionView {
	return transactionView{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		Amount:      tx.Amount.String(),
		Kind:        string(tx.Kind),
		Status:      string(tx.Status),
		Asset:       tx.Asset,
		Destination: store.StrVal(tx.Destination),
		ExternalRef: store.StrVal(tx.ExternalRef),
		InvoiceID:   store.StrVal(tx.InvoiceID),
		PayURL:      store.StrVal(tx.PayURL),
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	return dec.Decode(dst)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.logger.Info(msg, zap.String("path", r.URL.Path), zap.Error(err))
	}
	sendError(w, status, publicMessage(status, err))
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("keapay ledger is running"))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := utils.ParseAmount(req.Amount.String())
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	tx, err := h.ledger.CreateDepositInvoice(ctx, req.accountID(), amount, req.Asset)
	if errors.Is(err, service.ErrNoInvoiceCreator) {
		tx, err = h.ledger.RequestDeposit(ctx, req.accountID(), amount, req.Asset)
	}
	if err != nil {
		if tx != nil {
			h.logger.Warn("deposit recorded without invoice",
				zap.String("transaction_id", tx.ID), zap.Error(err))
			sendJSON(w, statusFor(err), map[string]any{
				"success":        false,
				"error":          publicMessage(statusFor(err), err),
				"transaction_id": tx.ID,
			})
			return
		}
		h.fail(w, r, "deposit failed", err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"transaction_id": tx.ID,
		"pay_url":        store.StrVal(tx.PayURL),
		"invoice_id":     store.StrVal(tx.InvoiceID),
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := utils.ParseAmount(req.Amount.String())
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ledger.RequestWithdraw(r.Context(), req.accountID(), amount, req.Asset, req.destination())
	if err != nil {
		h.fail(w, r, "withdraw failed", err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Withdrawal request created",
		"transaction_id": res.Transaction.ID,
		"new_balance":    res.Balance.String(),
	})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")
	balance, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, "balance lookup failed", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    balance.String(),
	})
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.ListPending(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		h.fail(w, r, "pending lookup failed", err)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, viewOf(tx))
	}
	sendJSON(w, http.StatusOK, map[string]any{"transactions": views})
}

func (h *Handler) Transaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "transaction lookup failed", err)
		return
	}
	sendJSON(w, http.StatusOK, viewOf(tx))
}

func (h *Handler) CompleteWithdraw(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.CompleteWithdraw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "complete withdraw failed", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "transaction": viewOf(tx)})
}

func (h *Handler) FailWithdraw(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.FailWithdraw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "fail withdraw failed", err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "transaction": viewOf(tx)})
}

// CryptoBotWebhook acknowledges every update that was durably handled,
// including ignored and malformed ones, so the processor does not keep
// redelivering them. Only storage failures are answered with 500.
func (h *Handler) CryptoBotWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		sendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	u, err := cryptopay.ParseUpdate(body)
	if err != nil {
		h.logger.Warn("webhook body is not a crypto pay update",
			zap.Error(err),
			zap.Int("payload_size", len(body)))
		sendJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	outcome, err := h.reconciler.Handle(r.Context(), service.EventFromUpdate(u))
	if err != nil {
		sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Debug("webhook handled", zap.String("outcome", string(outcome)))
	sendJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
