// Package cryptopay talks to the Crypto Pay API (https://help.crypt.bot/crypto-pay-api):
// outbound invoice creation and the wire format of inbound webhook updates.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://pay.crypt.bot/api"
	tokenHeader    = "Crypto-Pay-API-Token"
	// maxResponseSize bounds how much of an API reply is read.
	maxResponseSize = 1 << 20
)

var ErrAPI = errors.New("crypto pay api error")

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Invoice is the part of a created invoice the ledger keeps.
type Invoice struct {
	InvoiceID string
	PayURL    string
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type createInvoiceRequest struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payload     string `json:"payload"`
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type createInvoiceResponse struct {
	OK     bool      `json:"ok"`
	Error  *apiError `json:"error"`
	Result struct {
		InvoiceID     Number `json:"invoice_id"`
		PayURL        string `json:"pay_url"`
		BotInvoiceURL string `json:"bot_invoice_url"`
	} `json:"result"`
}

// CreateInvoice asks Crypto Pay for an invoice of amount asset. correlationID
// travels as the invoice payload and comes back in the invoice_paid update.
func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, asset, correlationID string) (*Invoice, error) {
	body, err := json.Marshal(createInvoiceRequest{
		Asset:       asset,
		Amount:      amount.String(),
		Description: fmt.Sprintf("Deposit %s %s", amount.String(), asset),
		Payload:     correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createInvoice", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	c.logger.Debug("creating invoice",
		zap.String("asset", asset),
		zap.String("amount", amount.String()),
		zap.String("correlation_id", correlationID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("failed to reach crypto pay",
			zap.String("correlation_id", correlationID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to send invoice request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice response: %w", err)
	}

	var out createInvoiceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("crypto pay returned unreadable body",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(raw)))
		return nil, fmt.Errorf("%w: status %d: unreadable body", ErrAPI, resp.StatusCode)
	}
	if !out.OK {
		name := "unknown"
		if out.Error != nil {
			name = out.Error.Name
		}
		c.logger.Warn("crypto pay rejected invoice",
			zap.String("correlation_id", correlationID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("error", name))
		return nil, fmt.Errorf("%w: %s", ErrAPI, name)
	}

	inv := &Invoice{
		InvoiceID: string(out.Result.InvoiceID),
		PayURL:    out.Result.PayURL,
	}
	if inv.PayURL == "" {
		inv.PayURL = out.Result.BotInvoiceURL
	}

	c.logger.Info("invoice created",
		zap.String("correlation_id", correlationID),
		zap.String("invoice_id", inv.InvoiceID))
	return inv, nil
}
