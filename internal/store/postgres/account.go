package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
)

const accountColumns = `id, balance::text, created_at, updated_at`

func (s *Store) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	return s.getAccount(ctx, id, false)
}

func (s *Store) EnsureAccount(ctx context.Context, id string) (*store.Account, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, balance)
		VALUES ($1, 0)
		ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return nil, mapErr("ensure account", err)
	}
	return s.GetAccount(ctx, id)
}

// LockAccount holds the row lock until the enclosing transaction ends.
func (s *Store) LockAccount(ctx context.Context, id string) (*store.Account, error) {
	return s.getAccount(ctx, id, true)
}

func (s *Store) getAccount(ctx context.Context, id string, forUpdate bool) (*store.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	acc, err := scanAccount(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account '%s': %w", id, store.ErrNotFound)
		}
		return nil, mapErr("query account", err)
	}
	return acc, nil
}

// AdjustBalance applies delta in a single statement guarded by the
// non-negative condition, so it is safe even without a prior LockAccount.
func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*store.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE id = $1 AND balance + $2::numeric >= 0
		RETURNING `+accountColumns, id, delta.String()))
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapErr("update balance", err)
	}

	cur, getErr := s.GetAccount(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("account '%s' balance %s, delta %s: %w",
		id, cur.Balance.String(), delta.String(), store.ErrInsufficientFunds)
}

func scanAccount(row pgx.Row) (*store.Account, error) {
	var (
		acc     store.Account
		balance string
	)
	if err := row.Scan(&acc.ID, &balance, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q for account '%s': %w", store.ErrCorruptRecord, balance, acc.ID, err)
	}
	acc.Balance = d
	return &acc, nil
}
