// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"EnsureAccountIsIdempotent", testEnsureAccount},
		{"GetAccountNotFound", testGetAccountNotFound},
		{"AdjustBalance", testAdjustBalance},
		{"CreateAndFindTransaction", testCreateAndFind},
		{"DuplicateExternalRef", testDuplicateExternalRef},
		{"TransitionStateMachine", testTransition},
		{"AttachInvoice", testAttachInvoice},
		{"ListPendingOrdered", testListPending},
		{"ListTransactionsFilter", testListTransactions},
		{"ExecTxRollback", testExecTxRollback},
		{"ExecTxCommit", testExecTxCommit},
		{"ConcurrentDebits", testConcurrentDebits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func seed(t *testing.T, s store.Store, id, balance string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.EnsureAccount(ctx, id); err != nil {
		t.Fatalf("EnsureAccount(%s): %v", id, err)
	}
	if balance != "0" {
		if _, err := s.AdjustBalance(ctx, id, mustDec(t, balance)); err != nil {
			t.Fatalf("AdjustBalance(%s): %v", id, err)
		}
	}
}

func newDeposit(accountID, amount, ref string) *store.Transaction {
	return &store.Transaction{
		AccountID:   accountID,
		Amount:      decimal.RequireFromString(amount),
		Kind:        store.KindDeposit,
		Status:      store.StatusPending,
		Asset:       "TON",
		ExternalRef: store.StrPtr(ref),
	}
}

func testEnsureAccount(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.EnsureAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("EnsureAccount: %v", err)
	}
	if !first.Balance.IsZero() {
		t.Errorf("new balance: got %s, want 0", first.Balance)
	}

	if _, err := s.AdjustBalance(ctx, "alice", mustDec(t, "5")); err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}

	second, err := s.EnsureAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("EnsureAccount again: %v", err)
	}
	if !second.Balance.Equal(mustDec(t, "5")) {
		t.Errorf("balance after second ensure: got %s, want 5", second.Balance)
	}
}

func testGetAccountNotFound(t *testing.T, s store.Store) {
	_, err := s.GetAccount(context.Background(), "nobody")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func testAdjustBalance(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "bob", "10.5")

	tests := []struct {
		name    string
		delta   string
		want    string
		wantErr error
	}{
		{"credit", "0.25", "10.75", nil},
		{"debit", "-0.75", "10", nil},
		{"overdraw", "-10.000000001", "10", store.ErrInsufficientFunds},
		{"drain", "-10", "0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AdjustBalance(ctx, "bob", mustDec(t, tt.delta))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			acc, err := s.GetAccount(ctx, "bob")
			if err != nil {
				t.Fatalf("GetAccount: %v", err)
			}
			if !acc.Balance.Equal(mustDec(t, tt.want)) {
				t.Errorf("balance: got %s, want %s", acc.Balance, tt.want)
			}
		})
	}
}

func testCreateAndFind(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "carol", "0")

	created, err := s.CreateTransaction(ctx, newDeposit("carol", "1.5", "ref-1"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateTransaction did not assign an id")
	}
	if created.Status != store.StatusPending {
		t.Errorf("status: got %s, want pending", created.Status)
	}

	byID, err := s.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !byID.Amount.Equal(mustDec(t, "1.5")) || byID.Asset != "TON" || byID.Kind != store.KindDeposit {
		t.Errorf("round trip mismatch: %+v", byID)
	}

	byRef, err := s.FindByExternalRef(ctx, "ref-1")
	if err != nil {
		t.Fatalf("FindByExternalRef: %v", err)
	}
	if byRef.ID != created.ID {
		t.Errorf("FindByExternalRef: got %s, want %s", byRef.ID, created.ID)
	}

	if _, err := s.FindByExternalRef(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing ref: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetTransaction(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
}

func testDuplicateExternalRef(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "dave", "0")

	if _, err := s.CreateTransaction(ctx, newDeposit("dave", "1", "dup")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.CreateTransaction(ctx, newDeposit("dave", "2", "dup"))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("second create: got %v, want ErrConflict", err)
	}

	// Transactions without an external ref never collide.
	for i := 0; i < 2; i++ {
		if _, err := s.CreateTransaction(ctx, newDeposit("dave", "1", "")); err != nil {
			t.Errorf("create without ref #%d: %v", i, err)
		}
	}
}

func testTransition(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "erin", "0")

	tests := []struct {
		name    string
		steps   []store.Status
		wantErr error
	}{
		{"complete", []store.Status{store.StatusCompleted}, nil},
		{"fail", []store.Status{store.StatusFailed}, nil},
		{"back to pending", []store.Status{store.StatusPending}, store.ErrInvalidTransition},
		{"complete twice", []store.Status{store.StatusCompleted, store.StatusCompleted}, store.ErrInvalidTransition},
		{"fail after complete", []store.Status{store.StatusCompleted, store.StatusFailed}, store.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := s.CreateTransaction(ctx, newDeposit("erin", "1", ""))
			if err != nil {
				t.Fatalf("CreateTransaction: %v", err)
			}
			var lastErr error
			for _, to := range tt.steps {
				_, lastErr = s.TransitionTransaction(ctx, tx.ID, to)
			}
			if !errors.Is(lastErr, tt.wantErr) {
				t.Errorf("got %v, want %v", lastErr, tt.wantErr)
			}
			got, err := s.GetTransaction(ctx, tx.ID)
			if err != nil {
				t.Fatalf("GetTransaction: %v", err)
			}
			if tt.wantErr == nil && got.Status != tt.steps[len(tt.steps)-1] {
				t.Errorf("status: got %s, want %s", got.Status, tt.steps[len(tt.steps)-1])
			}
		})
	}

	if _, err := s.TransitionTransaction(ctx, "missing", store.StatusCompleted); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing: got %v, want ErrNotFound", err)
	}
}

func testAttachInvoice(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "frank", "0")

	tx, err := s.CreateTransaction(ctx, newDeposit("frank", "3", "inv-ref"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := s.AttachInvoice(ctx, tx.ID, "42", "https://pay.example/42"); err != nil {
		t.Fatalf("AttachInvoice: %v", err)
	}
	got, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if store.StrVal(got.InvoiceID) != "42" || store.StrVal(got.PayURL) != "https://pay.example/42" {
		t.Errorf("invoice fields: got %v / %v", store.StrVal(got.InvoiceID), store.StrVal(got.PayURL))
	}
	if got.Status != store.StatusPending {
		t.Errorf("status changed to %s", got.Status)
	}

	if err := s.AttachInvoice(ctx, "missing", "1", ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing: got %v, want ErrNotFound", err)
	}
}

func testListPending(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "gina", "0")
	seed(t, s, "other", "0")

	var ids []string
	for i := 0; i < 4; i++ {
		tx, err := s.CreateTransaction(ctx, newDeposit("gina", "1", fmt.Sprintf("p-%d", i)))
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		ids = append(ids, tx.ID)
	}
	if _, err := s.CreateTransaction(ctx, newDeposit("other", "1", "")); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := s.TransitionTransaction(ctx, ids[1], store.StatusCompleted); err != nil {
		t.Fatalf("TransitionTransaction: %v", err)
	}

	pending, err := s.ListPending(ctx, "gina")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	want := []string{ids[0], ids[2], ids[3]}
	if len(pending) != len(want) {
		t.Fatalf("len: got %d, want %d", len(pending), len(want))
	}
	for i, tx := range pending {
		if tx.ID != want[i] {
			t.Errorf("pending[%d]: got %s, want %s", i, tx.ID, want[i])
		}
	}

	empty, err := s.ListPending(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListPending(nobody): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListPending(nobody): got %d rows", len(empty))
	}
}

func testListTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "hank", "0")
	seed(t, s, "ivy", "0")

	var hank []string
	for i := 0; i < 3; i++ {
		tx, err := s.CreateTransaction(ctx, newDeposit("hank", "1", ""))
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		hank = append(hank, tx.ID)
	}
	if _, err := s.CreateTransaction(ctx, newDeposit("ivy", "1", "")); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := s.TransitionTransaction(ctx, hank[0], store.StatusFailed); err != nil {
		t.Fatalf("TransitionTransaction: %v", err)
	}

	tests := []struct {
		name   string
		filter store.TransactionFilter
		want   []string
	}{
		{"account newest first", store.TransactionFilter{AccountID: "hank"}, []string{hank[2], hank[1], hank[0]}},
		{"limit", store.TransactionFilter{AccountID: "hank", Limit: 2}, []string{hank[2], hank[1]}},
		{"status", store.TransactionFilter{AccountID: "hank", Status: store.StatusFailed}, []string{hank[0]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len: got %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("[%d]: got %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}

	all, err := s.ListTransactions(ctx, store.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions(all): %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all: got %d, want 4", len(all))
	}
}

func testExecTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "jack", "10")

	boom := errors.New("boom")
	err := s.ExecTx(ctx, func(r store.Repository) error {
		if _, err := r.LockAccount(ctx, "jack"); err != nil {
			return err
		}
		if _, err := r.AdjustBalance(ctx, "jack", mustDec(t, "-4")); err != nil {
			return err
		}
		if _, err := r.CreateTransaction(ctx, newDeposit("jack", "4", "rolled-back")); err != nil {
			return err
		}
		if _, err := r.EnsureAccount(ctx, "ghost"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx: got %v, want boom", err)
	}

	acc, err := s.GetAccount(ctx, "jack")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Balance.Equal(mustDec(t, "10")) {
		t.Errorf("balance after rollback: got %s, want 10", acc.Balance)
	}
	if _, err := s.FindByExternalRef(ctx, "rolled-back"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("transaction survived rollback: %v", err)
	}
	if _, err := s.GetAccount(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("account survived rollback: %v", err)
	}
}

func testExecTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "kate", "10")

	var txID string
	err := s.ExecTx(ctx, func(r store.Repository) error {
		acc, err := r.LockAccount(ctx, "kate")
		if err != nil {
			return err
		}
		if _, err := r.AdjustBalance(ctx, acc.ID, mustDec(t, "-3")); err != nil {
			return err
		}
		tx, err := r.CreateTransaction(ctx, &store.Transaction{
			AccountID:   acc.ID,
			Amount:      mustDec(t, "3"),
			Kind:        store.KindWithdraw,
			Asset:       "TON",
			Destination: store.StrPtr("addr"),
		})
		if err != nil {
			return err
		}
		txID = tx.ID

		// Reads inside the scope see the scope's own writes.
		seen, err := r.GetAccount(ctx, acc.ID)
		if err != nil {
			return err
		}
		if !seen.Balance.Equal(mustDec(t, "7")) {
			return fmt.Errorf("in-scope balance %s, want 7", seen.Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecTx: %v", err)
	}

	acc, err := s.GetAccount(ctx, "kate")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Balance.Equal(mustDec(t, "7")) {
		t.Errorf("balance: got %s, want 7", acc.Balance)
	}
	tx, err := s.GetTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.Kind != store.KindWithdraw || store.StrVal(tx.Destination) != "addr" {
		t.Errorf("withdraw round trip: %+v", tx)
	}
}

// testConcurrentDebits races more locked debits than the balance covers and
// checks that exactly the affordable ones win.
func testConcurrentDebits(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "liz", "5")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ExecTx(ctx, func(r store.Repository) error {
				acc, err := r.LockAccount(ctx, "liz")
				if err != nil {
					return err
				}
				if acc.Balance.LessThan(decimal.NewFromInt(1)) {
					return store.ErrInsufficientFunds
				}
				_, err = r.AdjustBalance(ctx, "liz", decimal.NewFromInt(-1))
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrInsufficientFunds):
				failed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 || failed != workers-5 {
		t.Errorf("got %d succeeded / %d failed, want 5 / %d", succeeded, failed, workers-5)
	}
	acc, err := s.GetAccount(ctx, "liz")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Balance.IsZero() {
		t.Errorf("final balance: got %s, want 0", acc.Balance)
	}
}
