package store

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// Account Operations
	GetAccount(ctx context.Context, id string) (*Account, error)
	EnsureAccount(ctx context.Context, id string) (*Account, error)
	// LockAccount takes the exclusive per-account lock for the rest of the
	// enclosing ExecTx scope. Outside a scope it degrades to GetAccount.
	LockAccount(ctx context.Context, id string) (*Account, error)
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*Account, error)

	// Transaction Operations
	CreateTransaction(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (*Transaction, error)
	TransitionTransaction(ctx context.Context, id string, to Status) (*Transaction, error)
	AttachInvoice(ctx context.Context, id, invoiceID, payURL string) error
	ListPending(ctx context.Context, accountID string) ([]*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
}

// Store is a Repository bound to a live storage handle.
type Store interface {
	Repository

	// ExecTx runs fn in one atomic scope: every write made through the
	// Repository passed to fn commits together, or none does.
	ExecTx(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

// CheckTransition enforces the transaction state machine.
func CheckTransition(from, to Status) error {
	if from.Terminal() || !to.Terminal() {
		return ErrInvalidTransition
	}
	return nil
}
