package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
)

const transactionColumns = `id, account_id, amount, kind, status, asset,
    destination, external_ref, invoice_id, pay_url, created_at, updated_at`

// CreateTransaction inserts tx. An empty ID is filled with a fresh one and
// timestamps are always set by the store.
func (s *Store) CreateTransaction(ctx context.Context, tx *store.Transaction) (*store.Transaction, error) {
	out := *tx
	if out.ID == "" {
		out.ID = store.NewID()
	}
	if out.Status == "" {
		out.Status = store.StatusPending
	}
	now := time.Unix(time.Now().Unix(), 0)
	out.CreatedAt, out.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO transactions (`+transactionColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
    `,
		out.ID, out.AccountID, out.Amount.String(), string(out.Kind), string(out.Status), out.Asset,
		out.Destination, out.ExternalRef, out.InvoiceID, out.PayURL, now.Unix(), now.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transaction '%s' (external_ref %q): %w",
				out.ID, store.StrVal(out.ExternalRef), store.ErrConflict)
		}
		return nil, mapErr("insert transaction", err)
	}
	return &out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*store.Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction '%s': %w", id, store.ErrNotFound)
		}
		return nil, mapErr("query transaction", err)
	}
	return tx, nil
}

func (s *Store) FindByExternalRef(ctx context.Context, ref string) (*store.Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE external_ref = ?", ref)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("external_ref %q: %w", ref, store.ErrNotFound)
		}
		return nil, mapErr("query transaction by external_ref", err)
	}
	return tx, nil
}

func (s *Store) TransitionTransaction(ctx context.Context, id string, to store.Status) (*store.Transaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckTransition(tx.Status, to); err != nil {
		return nil, fmt.Errorf("transaction '%s' %s -> %s: %w", id, tx.Status, to, err)
	}

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), now, id, string(tx.Status))
	if err != nil {
		return nil, mapErr("update transaction status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("transaction '%s' changed concurrently: %w", id, store.ErrInvalidTransition)
	}

	tx.Status = to
	tx.UpdatedAt = time.Unix(now, 0)
	return tx, nil
}

func (s *Store) AttachInvoice(ctx context.Context, id, invoiceID, payURL string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET invoice_id = ?, pay_url = ?, updated_at = ? WHERE id = ?",
		store.StrPtr(invoiceID), store.StrPtr(payURL), time.Now().Unix(), id)
	if err != nil {
		return mapErr("attach invoice", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction '%s': %w", id, store.ErrNotFound)
	}
	return nil
}

// ListPending returns pending transactions oldest first. An empty accountID
// lists every account.
func (s *Store) ListPending(ctx context.Context, accountID string) ([]*store.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+transactionColumns+`
        FROM transactions
        WHERE status = 'pending' AND (? = '' OR account_id = ?)
        ORDER BY id
    `, accountID, accountID)
	if err != nil {
		return nil, mapErr("query pending transactions", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanTransactions(rows)
}

// ListTransactions returns the newest transactions matching filter first.
func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*store.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("query transactions", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*store.Transaction, error) {
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

func scanTransaction(row rowScanner) (*store.Transaction, error) {
	var (
		tx                   store.Transaction
		amount, kind, status string
		destination, extRef  sql.NullString
		invoiceID, payURL    sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&tx.ID, &tx.AccountID, &amount, &kind, &status, &tx.Asset,
		&destination, &extRef, &invoiceID, &payURL, &createdAt, &updatedAt,
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
	tx.Destination = nullable(destination)
	tx.ExternalRef = nullable(extRef)
	tx.InvoiceID = nullable(invoiceID)
	tx.PayURL = nullable(payURL)
	tx.CreatedAt = time.Unix(createdAt, 0)
	tx.UpdatedAt = time.Unix(updatedAt, 0)
	return &tx, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
