package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
)

const transactionColumns = `id, account_id, amount::text, kind, status, asset,
	destination, external_ref, invoice_id, pay_url, created_at, updated_at`

func (s *Store) CreateTransaction(ctx context.Context, tx *store.Transaction) (*store.Transaction, error) {
	id := tx.ID
	if id == "" {
		id = store.NewID()
	}
	status := tx.Status
	if status == "" {
		status = store.StatusPending
	}

	out, err := scanTransaction(s.db.QueryRow(ctx, `
		INSERT INTO transactions (id, account_id, amount, kind, status, asset,
			destination, external_ref, invoice_id, pay_url)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+transactionColumns,
		id, tx.AccountID, tx.Amount.String(), string(tx.Kind), string(status), tx.Asset,
		tx.Destination, tx.ExternalRef, tx.InvoiceID, tx.PayURL,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transaction '%s' (external_ref %q): %w",
				id, store.StrVal(tx.ExternalRef), store.ErrConflict)
		}
		return nil, mapErr("insert transaction", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*store.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction '%s': %w", id, store.ErrNotFound)
		}
		return nil, mapErr("query transaction", err)
	}
	return tx, nil
}

func (s *Store) FindByExternalRef(ctx context.Context, ref string) (*store.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE external_ref = $1", ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("external_ref %q: %w", ref, store.ErrNotFound)
		}
		return nil, mapErr("query transaction by external_ref", err)
	}
	return tx, nil
}

// TransitionTransaction moves a pending transaction to a terminal status.
// The status guard in the UPDATE makes a lost race surface as
// ErrInvalidTransition rather than a double transition.
func (s *Store) TransitionTransaction(ctx context.Context, id string, to store.Status) (*store.Transaction, error) {
	cur, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckTransition(cur.Status, to); err != nil {
		return nil, fmt.Errorf("transaction '%s' %s -> %s: %w", id, cur.Status, to, err)
	}

	tx, err := scanTransaction(s.db.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING `+transactionColumns, id, string(to), string(cur.Status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction '%s' changed concurrently: %w", id, store.ErrInvalidTransition)
		}
		return nil, mapErr("update transaction status", err)
	}
	return tx, nil
}

func (s *Store) AttachInvoice(ctx context.Context, id, invoiceID, payURL string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE transactions
		SET invoice_id = $2, pay_url = $3, updated_at = NOW()
		WHERE id = $1`, id, store.StrPtr(invoiceID), store.StrPtr(payURL))
	if err != nil {
		return mapErr("attach invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction '%s': %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPending(ctx context.Context, accountID string) ([]*store.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'pending' AND ($1 = '' OR account_id = $1)
		ORDER BY id`, accountID)
	if err != nil {
		return nil, mapErr("query pending transactions", err)
	}
	return collectTransactions(rows)
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*store.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("query transactions", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*store.Transaction, error) {
	defer rows.Close()

	var txs []*store.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, mapErr("scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("iterate transactions", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*store.Transaction, error) {
	var (
		tx                   store.Transaction
		amount, kind, status string
	)
	err := row.Scan(
		&tx.ID, &tx.AccountID, &amount, &kind, &status, &tx.Asset,
		&tx.Destination, &tx.ExternalRef, &tx.InvoiceID, &tx.PayURL,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q for transaction '%s': %w", store.ErrCorruptRecord, amount, tx.ID, err)
	}
	tx.Amount = d
	tx.Kind = store.Kind(kind)
	tx.Status = store.Status(status)
	return &tx, nil
}
