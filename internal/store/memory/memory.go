// Package memory is an in-process Store used by tests and by `keapay serve`
// when database.driver is "memory". Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	// sem admits one writing scope at a time.
	sem chan struct{}

	mu       sync.RWMutex
	accounts map[string]*store.Account
	txs      map[string]*store.Transaction
	refs     map[string]string
	closed   bool
}

func New() *Store {
	return &Store{
		sem:      make(chan struct{}, 1),
		accounts: make(map[string]*store.Account),
		txs:      make(map[string]*store.Transaction),
		refs:     make(map[string]string),
	}
}

// ExecTx runs fn against a staged view of the store. Staged writes become
// visible to readers only when fn returns nil.
func (s *Store) ExecTx(ctx context.Context, fn func(store.Repository) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("memory: acquire write scope: %w: %w", store.ErrStorageUnavailable, ctx.Err())
	}
	defer func() { <-s.sem }()

	if s.isClosed() {
		return fmt.Errorf("memory: %w: store closed", store.ErrStorageUnavailable)
	}

	t := &txn{
		s:        s,
		accounts: make(map[string]*store.Account),
		txs:      make(map[string]*store.Transaction),
		refs:     make(map[string]string),
	}
	if err := fn(t); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *txn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, acc := range t.accounts {
		s.accounts[id] = acc
	}
	for id, tx := range t.txs {
		s.txs[id] = tx
	}
	for ref, id := range t.refs {
		s.refs[ref] = id
	}
}

func (s *Store) Ping(_ context.Context) error {
	if s.isClosed() {
		return fmt.Errorf("memory: %w: store closed", store.ErrStorageUnavailable)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// write runs a single mutation as its own scope.
func (s *Store) write(ctx context.Context, fn func(store.Repository) error) error {
	return s.ExecTx(ctx, fn)
}

func (s *Store) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	return s.view().GetAccount(ctx, id)
}

func (s *Store) EnsureAccount(ctx context.Context, id string) (acc *store.Account, err error) {
	err = s.write(ctx, func(r store.Repository) error {
		acc, err = r.EnsureAccount(ctx, id)
		return err
	})
	return acc, err
}

func (s *Store) LockAccount(ctx context.Context, id string) (*store.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (acc *store.Account, err error) {
	err = s.write(ctx, func(r store.Repository) error {
		acc, err = r.AdjustBalance(ctx, id, delta)
		return err
	})
	return acc, err
}

func (s *Store) CreateTransaction(ctx context.Context, tx *store.Transaction) (out *store.Transaction, err error) {
	err = s.write(ctx, func(r store.Repository) error {
		out, err = r.CreateTransaction(ctx, tx)
		return err
	})
	return out, err
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*store.Transaction, error) {
	return s.view().GetTransaction(ctx, id)
}

func (s *Store) FindByExternalRef(ctx context.Context, ref string) (*store.Transaction, error) {
	return s.view().FindByExternalRef(ctx, ref)
}

func (s *Store) TransitionTransaction(ctx context.Context, id string, to store.Status) (out *store.Transaction, err error) {
	err = s.write(ctx, func(r store.Repository) error {
		out, err = r.TransitionTransaction(ctx, id, to)
		return err
	})
	return out, err
}

func (s *Store) AttachInvoice(ctx context.Context, id, invoiceID, payURL string) error {
	return s.write(ctx, func(r store.Repository) error {
		return r.AttachInvoice(ctx, id, invoiceID, payURL)
	})
}

func (s *Store) ListPending(ctx context.Context, accountID string) ([]*store.Transaction, error) {
	return s.view().ListPending(ctx, accountID)
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*store.Transaction, error) {
	return s.view().ListTransactions(ctx, filter)
}

// view is a read-only txn with nothing staged.
func (s *Store) view() *txn {
	return &txn{s: s}
}

// txn is the Repository handed to ExecTx callbacks. Reads see staged writes
// first, then committed state.
type txn struct {
	s        *Store
	accounts map[string]*store.Account
	txs      map[string]*store.Transaction
	refs     map[string]string
}

func (t *txn) account(id string) (*store.Account, bool) {
	if acc, ok := t.accounts[id]; ok {
		return acc, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	acc, ok := t.s.accounts[id]
	return acc, ok
}

func (t *txn) transaction(id string) (*store.Transaction, bool) {
	if tx, ok := t.txs[id]; ok {
		return tx, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	tx, ok := t.s.txs[id]
	return tx, ok
}

func (t *txn) refOwner(ref string) (string, bool) {
	if id, ok := t.refs[ref]; ok {
		return id, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	id, ok := t.s.refs[ref]
	return id, ok
}

func (t *txn) GetAccount(_ context.Context, id string) (*store.Account, error) {
	acc, ok := t.account(id)
	if !ok {
		return nil, fmt.Errorf("account '%s': %w", id, store.ErrNotFound)
	}
	cp := *acc
	return &cp, nil
}

func (t *txn) EnsureAccount(ctx context.Context, id string) (*store.Account, error) {
	if _, ok := t.account(id); !ok {
		now := time.Now()
		t.accounts[id] = &store.Account{ID: id, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	}
	return t.GetAccount(ctx, id)
}

func (t *txn) LockAccount(ctx context.Context, id string) (*store.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *txn) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (*store.Account, error) {
	acc, err := t.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return nil, fmt.Errorf("account '%s' balance %s, delta %s: %w",
			id, acc.Balance.String(), delta.String(), store.ErrInsufficientFunds)
	}
	acc.Balance = next
	acc.UpdatedAt = time.Now()
	t.accounts[id] = acc

	cp := *acc
	return &cp, nil
}

func (t *txn) CreateTransaction(_ context.Context, tx *store.Transaction) (*store.Transaction, error) {
	out := *tx
	if out.ID == "" {
		out.ID = store.NewID()
	}
	if out.Status == "" {
		out.Status = store.StatusPending
	}
	if _, ok := t.account(out.AccountID); !ok {
		return nil, fmt.Errorf("account '%s': %w", out.AccountID, store.ErrNotFound)
	}
	if _, ok := t.transaction(out.ID); ok {
		return nil, fmt.Errorf("transaction '%s': %w", out.ID, store.ErrConflict)
	}
	if ref := store.StrVal(out.ExternalRef); ref != "" {
		if _, taken := t.refOwner(ref); taken {
			return nil, fmt.Errorf("transaction '%s' (external_ref %q): %w", out.ID, ref, store.ErrConflict)
		}
		t.refs[ref] = out.ID
	}
	now := time.Now()
	out.CreatedAt, out.UpdatedAt = now, now
	t.txs[out.ID] = &out

	cp := out
	return &cp, nil
}

func (t *txn) GetTransaction(_ context.Context, id string) (*store.Transaction, error) {
	tx, ok := t.transaction(id)
	if !ok {
		return nil, fmt.Errorf("transaction '%s': %w", id, store.ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (t *txn) FindByExternalRef(ctx context.Context, ref string) (*store.Transaction, error) {
	id, ok := t.refOwner(ref)
	if !ok {
		return nil, fmt.Errorf("external_ref %q: %w", ref, store.ErrNotFound)
	}
	return t.GetTransaction(ctx, id)
}

func (t *txn) TransitionTransaction(ctx context.Context, id string, to store.Status) (*store.Transaction, error) {
	tx, err := t.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckTransition(tx.Status, to); err != nil {
		return nil, fmt.Errorf("transaction '%s' %s -> %s: %w", id, tx.Status, to, err)
	}
	tx.Status = to
	tx.UpdatedAt = time.Now()
	t.txs[id] = tx

	cp := *tx
	return &cp, nil
}

func (t *txn) AttachInvoice(ctx context.Context, id, invoiceID, payURL string) error {
	tx, err := t.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	tx.InvoiceID = store.StrPtr(invoiceID)
	tx.PayURL = store.StrPtr(payURL)
	tx.UpdatedAt = time.Now()
	t.txs[id] = tx
	return nil
}

// all returns a snapshot of every visible transaction ordered by id.
func (t *txn) all() []*store.Transaction {
	t.s.mu.RLock()
	merged := make(map[string]*store.Transaction, len(t.s.txs)+len(t.txs))
	for id, tx := range t.s.txs {
		merged[id] = tx
	}
	t.s.mu.RUnlock()
	for id, tx := range t.txs {
		merged[id] = tx
	}

	out := make([]*store.Transaction, 0, len(merged))
	for _, tx := range merged {
		cp := *tx
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *store.Transaction) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (t *txn) ListPending(_ context.Context, accountID string) ([]*store.Transaction, error) {
	var out []*store.Transaction
	for _, tx := range t.all() {
		if tx.Status == store.StatusPending && (accountID == "" || tx.AccountID == accountID) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (t *txn) ListTransactions(_ context.Context, filter store.TransactionFilter) ([]*store.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	all := t.all()
	var out []*store.Transaction
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		tx := all[i]
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
