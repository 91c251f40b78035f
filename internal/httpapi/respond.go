package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/store"
)

// statusFor maps a ledger error to the HTTP status returned to the caller.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, store.ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvoiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides driver details from callers on server-side failures.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusServiceUnavailable:
		return "storage unavailable, retry later"
	case http.StatusUnprocessableEntity:
		return "request violates a ledger constraint"
	case http.StatusBadGateway:
		return "failed to create invoice"
	}
	return err.Error()
}

func sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, map[string]any{
		"success": false,
		"error":   message,
	})
}
