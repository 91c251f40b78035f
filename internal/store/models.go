package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

type Account struct {
	ID        string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Transaction struct {
	ID          string
	AccountID   string
	Amount      decimal.Decimal
	Kind        Kind
	Status      Status
	Asset       string
	Destination *string
	ExternalRef *string
	InvoiceID   *string
	PayURL      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	AccountID string
	Status    Status
	Limit     int
}

const DefaultListLimit = 20

// StrPtr returns nil for an empty string so optional columns store NULL.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrVal dereferences an optional column.
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
