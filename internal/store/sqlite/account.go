package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
)

const accountColumns = `id, balance, created_at, updated_at`

func (s *Store) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account '%s': %w", id, store.ErrNotFound)
		}
		return nil, mapErr("query account", err)
	}
	return acc, nil
}

// EnsureAccount creates the account with a zero balance if it does not
// exist yet and returns its current state either way.
func (s *Store) EnsureAccount(ctx context.Context, id string) (*store.Account, error) {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO accounts (id, balance, created_at, updated_at)
        VALUES (?, '0', ?, ?)
        ON CONFLICT (id) DO NOTHING;
    `, id, now, now)
	if err != nil {
		return nil, mapErr("ensure account", err)
	}
	return s.GetAccount(ctx, id)
}

// LockAccount reads the account inside the current scope. The scope already
// holds the database write lock, so no row lock is needed.
func (s *Store) LockAccount(ctx context.Context, id string) (*store.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*store.Account, error) {
	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return nil, fmt.Errorf("account '%s' balance %s, delta %s: %w",
			id, acc.Balance.String(), delta.String(), store.ErrInsufficientFunds)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?",
		next.String(), now.Unix(), id)
	if err != nil {
		return nil, mapErr("update balance", err)
	}

	acc.Balance = next
	acc.UpdatedAt = time.Unix(now.Unix(), 0)
	return acc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*store.Account, error) {
	var (
		acc                  store.Account
		balance              string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&acc.ID, &balance, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q for account '%s': %w", store.ErrCorruptRecord, balance, acc.ID, err)
	}
	acc.Balance = d
	acc.CreatedAt = time.Unix(createdAt, 0)
	acc.UpdatedAt = time.Unix(updatedAt, 0)
	return &acc, nil
}
