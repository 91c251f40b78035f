package cryptopay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	UpdateInvoicePaid = "invoice_paid"
	StatusPaid        = "paid"
)

// Update is the body Crypto Pay POSTs to the webhook URL.
type Update struct {
	UpdateID    Number         `json:"update_id"`
	UpdateType  string         `json:"update_type"`
	RequestDate string         `json:"request_date"`
	Payload     InvoicePayload `json:"payload"`
}

type InvoicePayload struct {
	InvoiceID Number `json:"invoice_id"`
	Status    string `json:"status"`
	Asset     string `json:"asset"`
	Amount    Number `json:"amount"`
	// Payload is the correlation id given to CreateInvoice.
	Payload string `json:"payload"`
	PayURL  string `json:"pay_url"`
	PaidAt  string `json:"paid_at"`
}

// ParseUpdate decodes a webhook body. Unknown fields are ignored.
func ParseUpdate(data []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("invalid crypto pay update: %w", err)
	}
	return &u, nil
}

// Number holds the text of a JSON value the API sends either as a number or
// as a string, such as amounts and ids. It is never converted to float.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
	default:
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return fmt.Errorf("expected number or string, got %s", b)
		}
		*n = Number(num)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

func (n Number) String() string {
	return string(n)
}
