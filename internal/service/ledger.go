package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/utils"
	"github.com/hance08/keapay/internal/validation"
)

// InvoiceCreator opens a payment invoice with the processor.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, asset, correlationID string) (*cryptopay.Invoice, error)
}

// LedgerService is the only writer of balances. Every operation that touches
// a balance or a transaction status runs inside a single store scope.
type LedgerService struct {
	store    store.Store
	config   Config
	logger   *zap.Logger
	invoices InvoiceCreator
}

func NewLedgerService(st store.Store, cfg Config, logger *zap.Logger, invoices InvoiceCreator) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{store: st, config: cfg, logger: logger, invoices: invoices}
}

// Withdrawal is a debited withdraw request and the balance left after it.
type Withdrawal struct {
	Transaction *store.Transaction
	Balance     decimal.Decimal
}

type ConfirmResult int

const (
	Applied ConfirmResult = iota
	NoOp
)

// Reasons a confirmation can be a no-op.
const (
	ReasonAlreadyCompleted = "already completed"
	ReasonAlreadyFailed    = "already failed"
	ReasonNotDeposit       = "not a deposit"
	ReasonAssetMismatch    = "asset mismatch"
	ReasonAmountMismatch   = "amount mismatch"
)

type Confirmation struct {
	Result      ConfirmResult
	Reason      string
	Transaction *store.Transaction
}

// Duplicate reports a no-op caused by an earlier successful confirmation.
func (c *Confirmation) Duplicate() bool {
	return c.Result == NoOp && c.Reason == ReasonAlreadyCompleted
}

// Mismatch reports a no-op where the event disagreed with the record.
func (c *Confirmation) Mismatch() bool {
	switch c.Reason {
	case ReasonNotDeposit, ReasonAssetMismatch, ReasonAmountMismatch:
		return c.Result == NoOp
	}
	return false
}

func (ls *LedgerService) DefaultAsset() string {
	return ls.config.DefaultAsset
}

// validateAmount checks the range before anything formats the value, since
// String expands the exponent.
func validateAmount(amount decimal.Decimal) error {
	if err := utils.CheckAmount(amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0 (got %s)", ErrInvalidInput, amount.String())
	}
	return nil
}

// accountKey returns the trimmed id every store call is keyed by.
func accountKey(accountID string) (string, error) {
	if err := validation.AccountID(accountID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return strings.TrimSpace(accountID), nil
}

// asset falls back to the configured default and validates the result.
func (ls *LedgerService) asset(asset string) (string, error) {
	if asset = strings.TrimSpace(asset); asset == "" {
		asset = ls.config.DefaultAsset
	}
	if err := validation.Asset(asset); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return asset, nil
}

// RequestDeposit records a pending deposit. The balance moves only when a
// matching confirmation arrives. The transaction id doubles as its
// external_ref, the correlation id handed to the processor.
func (ls *LedgerService) RequestDeposit(ctx context.Context, accountID string, amount decimal.Decimal, asset string) (*store.Transaction, error) {
	accountID, err := accountKey(accountID)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	asset, err = ls.asset(asset)
	if err != nil {
		return nil, err
	}

	id := store.NewID()
	var created *store.Transaction
	err = ls.store.ExecTx(ctx, func(repo store.Repository) error {
		if _, err := repo.EnsureAccount(ctx, accountID); err != nil {
			return err
		}
		tx, err := repo.CreateTransaction(ctx, &store.Transaction{
			ID:          id,
			AccountID:   accountID,
			Amount:      amount,
			Kind:        store.KindDeposit,
			Status:      store.StatusPending,
			Asset:       asset,
			ExternalRef: &id,
		})
		if err != nil {
			return err
		}
		created = tx
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request deposit: %w", err)
	}

	ls.logger.Info("deposit requested",
		zap.String("account_id", accountID),
		zap.String("transaction_id", created.ID),
		zap.String("amount", amount.String()),
		zap.String("asset", asset))
	return created, nil
}

// CreateDepositInvoice requests a deposit and opens a processor invoice for
// it. If the invoice cannot be created the pending transaction is still
// returned, alongside an error wrapping ErrInvoiceUnavailable.
func (ls *LedgerService) CreateDepositInvoice(ctx context.Context, accountID string, amount decimal.Decimal, asset string) (*store.Transaction, error) {
	if ls.invoices == nil {
		return nil, ErrNoInvoiceCreator
	}

	tx, err := ls.RequestDeposit(ctx, accountID, amount, asset)
	if err != nil {
		return nil, err
	}

	inv, err := ls.invoices.CreateInvoice(ctx, tx.Amount, tx.Asset, tx.ID)
	if err != nil {
		ls.logger.Warn("invoice creation failed, deposit left pending",
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return tx, fmt.Errorf("%w: %w", ErrInvoiceUnavailable, err)
	}

	if err := ls.store.AttachInvoice(ctx, tx.ID, inv.InvoiceID, inv.PayURL); err != nil {
		return tx, fmt.Errorf("failed to record invoice %s: %w", inv.InvoiceID, err)
	}
	tx.InvoiceID = store.StrPtr(inv.InvoiceID)
	tx.PayURL = store.StrPtr(inv.PayURL)
	return tx, nil
}

// AttachInvoice records an invoice created outside CreateDepositInvoice.
func (ls *LedgerService) AttachInvoice(ctx context.Context, txID, invoiceID, payURL string) error {
	if err := ls.store.AttachInvoice(ctx, txID, invoiceID, payURL); err != nil {
		return fmt.Errorf("failed to attach invoice: %w", err)
	}
	return nil
}

// RequestWithdraw debits the account and records a pending withdrawal. The
// balance check and the debit happen under the account lock, so concurrent
// withdrawals cannot both spend the same funds.
func (ls *LedgerService) RequestWithdraw(ctx context.Context, accountID string, amount decimal.Decimal, asset, destination string) (*Withdrawal, error) {
	accountID, err := accountKey(accountID)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := validation.Destination(destination); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	asset, err = ls.asset(asset)
	if err != nil {
		return nil, err
	}

	var out Withdrawal
	err = ls.store.ExecTx(ctx, func(repo store.Repository) error {
		if _, err := repo.EnsureAccount(ctx, accountID); err != nil {
			return err
		}
		acc, err := repo.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Balance.LessThan(amount) {
			return fmt.Errorf("available %s, requested %s: %w",
				acc.Balance.String(), amount.String(), store.ErrInsufficientFunds)
		}

		acc, err = repo.AdjustBalance(ctx, accountID, amount.Neg())
		if err != nil {
			return err
		}
		tx, err := repo.CreateTransaction(ctx, &store.Transaction{
			AccountID:   accountID,
			Amount:      amount,
			Kind:        store.KindWithdraw,
			Status:      store.StatusPending,
			Asset:       asset,
			Destination: store.StrPtr(destination),
		})
		if err != nil {
			return err
		}

		out = Withdrawal{Transaction: tx, Balance: acc.Balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			ls.logger.Info("withdraw rejected",
				zap.String("account_id", accountID),
				zap.String("amount", amount.String()),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to request withdraw: %w", err)
	}

	ls.logger.Info("withdraw requested",
		zap.String("account_id", accountID),
		zap.String("transaction_id", out.Transaction.ID),
		zap.String("amount", amount.String()),
		zap.String("asset", asset))
	return &out, nil
}

// ConfirmDeposit credits the deposit identified by externalRef exactly once.
// amount and asset must match what was recorded at request time; the credit
// is always the recorded amount.
func (ls *LedgerService) ConfirmDeposit(ctx context.Context, externalRef string, amount decimal.Decimal, asset string) (*Confirmation, error) {
	if strings.TrimSpace(externalRef) == "" {
		return nil, fmt.Errorf("%w: external reference is required", ErrInvalidInput)
	}
	if err := utils.CheckAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	// Cheap gate outside the lock. The re-read inside the scope decides.
	found, err := ls.store.FindByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm deposit: %w", err)
	}
	if c := precheck(found, amount, asset); c != nil {
		return c, nil
	}

	var conf *Confirmation
	err = ls.store.ExecTx(ctx, func(repo store.Repository) error {
		if _, err := repo.LockAccount(ctx, found.AccountID); err != nil {
			return err
		}
		tx, err := repo.GetTransaction(ctx, found.ID)
		if err != nil {
			return err
		}
		if c := precheck(tx, amount, asset); c != nil {
			conf = c
			return nil
		}

		if _, err := repo.AdjustBalance(ctx, tx.AccountID, tx.Amount); err != nil {
			return err
		}
		tx, err = repo.TransitionTransaction(ctx, tx.ID, store.StatusCompleted)
		if err != nil {
			return err
		}
		conf = &Confirmation{Result: Applied, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm deposit: %w", err)
	}

	if conf.Result == Applied {
		ls.logger.Info("deposit confirmed",
			zap.String("account_id", conf.Transaction.AccountID),
			zap.String("transaction_id", conf.Transaction.ID),
			zap.String("amount", conf.Transaction.Amount.String()),
			zap.String("asset", conf.Transaction.Asset))
	}
	return conf, nil
}

// precheck returns a no-op Confirmation when tx must not be credited.
func precheck(tx *store.Transaction, amount decimal.Decimal, asset string) *Confirmation {
	noop := func(reason string) *Confirmation {
		return &Confirmation{Result: NoOp, Reason: reason, Transaction: tx}
	}
	switch {
	case tx.Status == store.StatusCompleted:
		return noop(ReasonAlreadyCompleted)
	case tx.Status == store.StatusFailed:
		return noop(ReasonAlreadyFailed)
	case tx.Kind != store.KindDeposit:
		return noop(ReasonNotDeposit)
	case asset != "" && !strings.EqualFold(asset, tx.Asset):
		return noop(ReasonAssetMismatch)
	case !amount.Equal(tx.Amount):
		return noop(ReasonAmountMismatch)
	}
	return nil
}

// FailDeposit marks a pending deposit failed, e.g. when its invoice expired.
func (ls *LedgerService) FailDeposit(ctx context.Context, externalRef string) (*store.Transaction, error) {
	var out *store.Transaction
	err := ls.store.ExecTx(ctx, func(repo store.Repository) error {
		tx, err := repo.FindByExternalRef(ctx, externalRef)
		if err != nil {
			return err
		}
		if tx.Kind != store.KindDeposit {
			return fmt.Errorf("%w: transaction %s is a %s", ErrInvalidInput, tx.ID, tx.Kind)
		}
		out, err = repo.TransitionTransaction(ctx, tx.ID, store.StatusFailed)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fail deposit: %w", err)
	}

	ls.logger.Info("deposit failed",
		zap.String("account_id", out.AccountID),
		zap.String("transaction_id", out.ID),
		zap.String("external_ref", externalRef))
	return out, nil
}

// CompleteWithdraw records that the payout for txID went out.
func (ls *LedgerService) CompleteWithdraw(ctx context.Context, txID string) (*store.Transaction, error) {
	var out *store.Transaction
	err := ls.store.ExecTx(ctx, func(repo store.Repository) error {
		tx, err := pendingWithdraw(ctx, repo, txID)
		if err != nil {
			return err
		}
		out, err = repo.TransitionTransaction(ctx, tx.ID, store.StatusCompleted)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete withdraw: %w", err)
	}

	ls.logger.Info("withdraw completed",
		zap.String("account_id", out.AccountID),
		zap.String("transaction_id", out.ID))
	return out, nil
}

// FailWithdraw marks the withdrawal failed and refunds the debited amount in
// the same scope.
func (ls *LedgerService) FailWithdraw(ctx context.Context, txID string) (*store.Transaction, error) {
	var out *store.Transaction
	err := ls.store.ExecTx(ctx, func(repo store.Repository) error {
		tx, err := pendingWithdraw(ctx, repo, txID)
		if err != nil {
			return err
		}
		if _, err := repo.LockAccount(ctx, tx.AccountID); err != nil {
			return err
		}
		// Re-read under the lock so two concurrent failures cannot both refund.
		if tx, err = repo.GetTransaction(ctx, txID); err != nil {
			return err
		}
		if out, err = repo.TransitionTransaction(ctx, tx.ID, store.StatusFailed); err != nil {
			return err
		}
		_, err = repo.AdjustBalance(ctx, tx.AccountID, tx.Amount)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fail withdraw: %w", err)
	}

	ls.logger.Info("withdraw failed, amount refunded",
		zap.String("account_id", out.AccountID),
		zap.String("transaction_id", out.ID),
		zap.String("amount", out.Amount.String()))
	return out, nil
}

func pendingWithdraw(ctx context.Context, repo store.Repository, txID string) (*store.Transaction, error) {
	tx, err := repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Kind != store.KindWithdraw {
		return nil, fmt.Errorf("%w: transaction %s is a %s", ErrInvalidInput, tx.ID, tx.Kind)
	}
	return tx, nil
}

// GetBalance returns 0 for accounts that were never referenced, without
// creating them.
func (ls *LedgerService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	accountID, err := accountKey(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	acc, err := ls.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return acc.Balance, nil
}

func (ls *LedgerService) GetTransaction(ctx context.Context, id string) (*store.Transaction, error) {
	return ls.store.GetTransaction(ctx, id)
}

// ListPending lists pending transactions oldest first; an empty accountID
// lists all accounts.
func (ls *LedgerService) ListPending(ctx context.Context, accountID string) ([]*store.Transaction, error) {
	return ls.store.ListPending(ctx, strings.TrimSpace(accountID))
}

func (ls *LedgerService) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*store.Transaction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	filter.AccountID = strings.TrimSpace(filter.AccountID)
	return ls.store.ListTransactions(ctx, filter)
}

// Ping checks that the backing store is reachable.
func (ls *LedgerService) Ping(ctx context.Context) error {
	return ls.store.Ping(ctx)
}
