package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/store"
)

func TestAccountIDIsTrimmed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()

		dep, err := svc.Ledger.RequestDeposit(ctx, " 42", dec(t, "10"), "TON")
		if err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}
		if dep.AccountID != "42" {
			t.Errorf("AccountID = %q, want %q", dep.AccountID, "42")
		}
		if _, err := svc.Ledger.ConfirmDeposit(ctx, dep.ID, dec(t, "10"), "TON"); err != nil {
			t.Fatalf("ConfirmDeposit: %v", err)
		}
		assertBalance(t, svc, "42", "10")
		assertBalance(t, svc, "42 ", "10")

		if _, err := svc.Ledger.RequestWithdraw(ctx, "\t42", dec(t, "4"), "TON", "addr"); err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}
		assertBalance(t, svc, "42", "6")

		pending, err := svc.Ledger.ListPending(ctx, " 42 ")
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("pending = %d, want 1", len(pending))
		}
	})
}

func TestRequestValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		tests := []struct {
			name string
			call func() error
		}{
			{"deposit zero", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, "a", decimal.Zero, "TON")
				return err
			}},
			{"deposit negative", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, "a", dec(t, "-1"), "TON")
				return err
			}},
			{"deposit no account", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, " ", dec(t, "1"), "TON")
				return err
			}},
			{"withdraw zero", func() error {
				_, err := svc.Ledger.RequestWithdraw(ctx, "a", decimal.Zero, "TON", "addr")
				return err
			}},
			{"withdraw no destination", func() error {
				_, err := svc.Ledger.RequestWithdraw(ctx, "a", dec(t, "1"), "TON", "")
				return err
			}},
			{"deposit bad asset", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, "a", dec(t, "1"), "US$")
				return err
			}},
			{"withdraw destination with spaces", func() error {
				_, err := svc.Ledger.RequestWithdraw(ctx, "a", dec(t, "1"), "TON", "two words")
				return err
			}},
			{"confirm no ref", func() error {
				_, err := svc.Ledger.ConfirmDeposit(ctx, "", dec(t, "1"), "TON")
				return err
			}},
			{"deposit huge exponent", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, "a", decimal.New(1, 200000000), "TON")
				return err
			}},
			{"deposit too many decimals", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, "a", decimal.New(1, -22), "TON")
				return err
			}},
			{"deposit too many integer digits", func() error {
				_, err := svc.Ledger.RequestDeposit(ctx, "a", decimal.New(1, 20), "TON")
				return err
			}},
			{"withdraw too many decimals", func() error {
				_, err := svc.Ledger.RequestWithdraw(ctx, "a", decimal.New(1, -19), "TON", "addr")
				return err
			}},
			{"confirm huge exponent", func() error {
				_, err := svc.Ledger.ConfirmDeposit(ctx, "ref", decimal.New(1, 200000000), "TON")
				return err
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.call(); !errors.Is(err, ErrInvalidInput) {
					t.Errorf("got %v, want ErrInvalidInput", err)
				}
			})
		}

		// Rejected input never reaches the store.
		if _, err := st.GetAccount(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("account created by invalid request: %v", err)
		}
	})
}

func TestRequestDeposit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()

		tx, err := svc.Ledger.RequestDeposit(ctx, "alice", dec(t, "10"), "")
		if err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}
		if tx.Status != store.StatusPending || tx.Kind != store.KindDeposit {
			t.Errorf("got %s %s, want pending deposit", tx.Status, tx.Kind)
		}
		if tx.Asset != "TON" {
			t.Errorf("asset: got %q, want default TON", tx.Asset)
		}
		if store.StrVal(tx.ExternalRef) != tx.ID {
			t.Errorf("external_ref %q != id %q", store.StrVal(tx.ExternalRef), tx.ID)
		}

		acc, err := st.GetAccount(ctx, "alice")
		if err != nil {
			t.Fatalf("account not created: %v", err)
		}
		if !acc.Balance.IsZero() {
			t.Errorf("balance moved before confirmation: %s", acc.Balance)
		}
	})
}

// Deposit 10 TON, confirmation delivered twice.
func TestDepositConfirmedTwice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()

		t1, err := svc.Ledger.RequestDeposit(ctx, "A", dec(t, "10"), "TON")
		if err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}

		first, err := svc.Ledger.ConfirmDeposit(ctx, t1.ID, dec(t, "10"), "TON")
		if err != nil {
			t.Fatalf("first ConfirmDeposit: %v", err)
		}
		if first.Result != Applied || first.Transaction.Status != store.StatusCompleted {
			t.Errorf("first: got %+v", first)
		}
		assertBalance(t, svc, "A", "10")

		second, err := svc.Ledger.ConfirmDeposit(ctx, t1.ID, dec(t, "10"), "TON")
		if err != nil {
			t.Fatalf("second ConfirmDeposit: %v", err)
		}
		if !second.Duplicate() {
			t.Errorf("second: got %+v, want duplicate", second)
		}
		assertBalance(t, svc, "A", "10")
	})
}

// Balance 5, withdraw 5, then withdraw 1.
func TestWithdrawInsufficientFunds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		fund(t, svc, "B", "5")

		w, err := svc.Ledger.RequestWithdraw(ctx, "B", dec(t, "5"), "TON", "addr1")
		if err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}
		if !w.Balance.IsZero() || w.Transaction.Status != store.StatusPending {
			t.Errorf("got balance %s status %s", w.Balance, w.Transaction.Status)
		}
		if store.StrVal(w.Transaction.Destination) != "addr1" {
			t.Errorf("destination: got %q", store.StrVal(w.Transaction.Destination))
		}

		_, err = svc.Ledger.RequestWithdraw(ctx, "B", dec(t, "1"), "TON", "addr1")
		if !errors.Is(err, store.ErrInsufficientFunds) {
			t.Errorf("got %v, want ErrInsufficientFunds", err)
		}
		assertBalance(t, svc, "B", "0")

		pending, err := svc.Ledger.ListPending(ctx, "B")
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("pending: got %d, want 1", len(pending))
		}
	})
}

func TestWithdrawUnknownAccountLeavesNoRow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		_, err := svc.Ledger.RequestWithdraw(ctx, "ghost", dec(t, "1"), "TON", "addr")
		if !errors.Is(err, store.ErrInsufficientFunds) {
			t.Fatalf("got %v, want ErrInsufficientFunds", err)
		}
		if _, err := st.GetAccount(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("rejected withdraw left an account: %v", err)
		}
	})
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		assertBalance(t, svc, "never-seen", "0")
		if _, err := st.GetAccount(ctx, "never-seen"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetBalance created the account: %v", err)
		}
	})
}

func TestConcurrentWithdrawals(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		fund(t, svc, "C", "10")

		// 12 x 1.5 = 18 requested against 10 available.
		const workers = 12
		amount := dec(t, "1.5")
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			debited   = decimal.Zero
			succeeded int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Ledger.RequestWithdraw(ctx, "C", amount, "TON", "addr")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
					debited = debited.Add(amount)
				case errors.Is(err, store.ErrInsufficientFunds):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if succeeded != 6 {
			t.Errorf("succeeded: got %d, want 6", succeeded)
		}
		if debited.GreaterThan(dec(t, "10")) {
			t.Errorf("debited %s exceeds balance 10", debited)
		}
		assertBalance(t, svc, "C", dec(t, "10").Sub(debited).String())
	})
}

func TestConfirmMismatchLeavesPending(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()

		dep, err := svc.Ledger.RequestDeposit(ctx, "D", dec(t, "10"), "TON")
		if err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}
		tests := []struct {
			name   string
			amount string
			asset  string
			reason string
		}{
			{"amount", "9.99", "TON", ReasonAmountMismatch},
			{"asset", "10", "USDT", ReasonAssetMismatch},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conf, err := svc.Ledger.ConfirmDeposit(ctx, dep.ID, dec(t, tt.amount), tt.asset)
				if err != nil {
					t.Fatalf("ConfirmDeposit: %v", err)
				}
				if !conf.Mismatch() || conf.Reason != tt.reason {
					t.Errorf("got %+v, want mismatch %q", conf, tt.reason)
				}
			})
		}

		got, err := svc.Ledger.GetTransaction(ctx, dep.ID)
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if got.Status != store.StatusPending {
			t.Errorf("status: got %s, want pending", got.Status)
		}
		assertBalance(t, svc, "D", "0")

		// Equal value with different scale still matches.
		conf, err := svc.Ledger.ConfirmDeposit(ctx, dep.ID, dec(t, "10.000"), "ton")
		if err != nil {
			t.Fatalf("ConfirmDeposit: %v", err)
		}
		if conf.Result != Applied {
			t.Errorf("got %+v, want applied", conf)
		}
		assertBalance(t, svc, "D", "10")
	})
}

func TestConfirmUnknownRef(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		_, err := svc.Ledger.ConfirmDeposit(context.Background(), "nope", dec(t, "1"), "TON")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestFailDeposit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		dep, err := svc.Ledger.RequestDeposit(ctx, "E", dec(t, "4"), "TON")
		if err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}

		failed, err := svc.Ledger.FailDeposit(ctx, dep.ID)
		if err != nil {
			t.Fatalf("FailDeposit: %v", err)
		}
		if failed.Status != store.StatusFailed {
			t.Errorf("status: got %s, want failed", failed.Status)
		}

		conf, err := svc.Ledger.ConfirmDeposit(ctx, dep.ID, dec(t, "4"), "TON")
		if err != nil {
			t.Fatalf("ConfirmDeposit: %v", err)
		}
		if conf.Result != NoOp || conf.Reason != ReasonAlreadyFailed {
			t.Errorf("got %+v, want no-op already failed", conf)
		}
		assertBalance(t, svc, "E", "0")

		if _, err := svc.Ledger.FailDeposit(ctx, dep.ID); !errors.Is(err, store.ErrInvalidTransition) {
			t.Errorf("second FailDeposit: got %v, want ErrInvalidTransition", err)
		}
	})
}

func TestWithdrawFinalization(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		fund(t, svc, "F", "10")

		w1, err := svc.Ledger.RequestWithdraw(ctx, "F", dec(t, "4"), "TON", "addr")
		if err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}
		w2, err := svc.Ledger.RequestWithdraw(ctx, "F", dec(t, "3"), "TON", "addr")
		if err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}
		assertBalance(t, svc, "F", "3")

		done, err := svc.Ledger.CompleteWithdraw(ctx, w1.Transaction.ID)
		if err != nil {
			t.Fatalf("CompleteWithdraw: %v", err)
		}
		if done.Status != store.StatusCompleted {
			t.Errorf("status: got %s, want completed", done.Status)
		}
		assertBalance(t, svc, "F", "3")

		if _, err := svc.Ledger.FailWithdraw(ctx, w1.Transaction.ID); !errors.Is(err, store.ErrInvalidTransition) {
			t.Errorf("fail after complete: got %v, want ErrInvalidTransition", err)
		}
		assertBalance(t, svc, "F", "3")

		if _, err := svc.Ledger.FailWithdraw(ctx, w2.Transaction.ID); err != nil {
			t.Fatalf("FailWithdraw: %v", err)
		}
		assertBalance(t, svc, "F", "6")

		if _, err := svc.Ledger.FailWithdraw(ctx, w2.Transaction.ID); !errors.Is(err, store.ErrInvalidTransition) {
			t.Errorf("second FailWithdraw: got %v, want ErrInvalidTransition", err)
		}
		assertBalance(t, svc, "F", "6")

		dep, err := svc.Ledger.RequestDeposit(ctx, "F", dec(t, "1"), "TON")
		if err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}
		if _, err := svc.Ledger.CompleteWithdraw(ctx, dep.ID); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("complete a deposit: got %v, want ErrInvalidInput", err)
		}
		if _, err := svc.Ledger.CompleteWithdraw(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("complete missing: got %v, want ErrNotFound", err)
		}
	})
}

func TestConcurrentFailWithdrawRefundsOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		fund(t, svc, "G", "2")
		w, err := svc.Ledger.RequestWithdraw(ctx, "G", dec(t, "2"), "TON", "addr")
		if err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Ledger.FailWithdraw(ctx, w.Transaction.ID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		ok := 0
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrInvalidTransition):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if ok != 1 {
			t.Errorf("successful refunds: got %d, want 1", ok)
		}
		assertBalance(t, svc, "G", "2")
	})
}

// The balance equals completed deposits minus withdrawals that were debited
// and not refunded.
func TestBalanceMatchesHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service, st store.Store) {
		ctx := context.Background()
		fund(t, svc, "H", "7.25")
		fund(t, svc, "H", "0.75")
		if _, err := svc.Ledger.RequestDeposit(ctx, "H", dec(t, "100"), "TON"); err != nil {
			t.Fatalf("RequestDeposit: %v", err)
		}
		w1, err := svc.Ledger.RequestWithdraw(ctx, "H", dec(t, "2"), "TON", "addr")
		if err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}
		w2, err := svc.Ledger.RequestWithdraw(ctx, "H", dec(t, "1.5"), "TON", "addr")
		if err != nil {
			t.Fatalf("RequestWithdraw: %v", err)
		}
		if _, err := svc.Ledger.CompleteWithdraw(ctx, w1.Transaction.ID); err != nil {
			t.Fatalf("CompleteWithdraw: %v", err)
		}
		if _, err := svc.Ledger.FailWithdraw(ctx, w2.Transaction.ID); err != nil {
			t.Fatalf("FailWithdraw: %v", err)
		}

		txs, err := svc.Ledger.ListTransactions(ctx, store.TransactionFilter{AccountID: "H", Limit: 100})
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		want := decimal.Zero
		for _, tx := range txs {
			switch {
			case tx.Kind == store.KindDeposit && tx.Status == store.StatusCompleted:
				want = want.Add(tx.Amount)
			case tx.Kind == store.KindWithdraw && tx.Status != store.StatusFailed:
				want = want.Sub(tx.Amount)
			}
		}
		assertBalance(t, svc, "H", want.String())
		assertBalance(t, svc, "H", "6")
	})
}

func TestListTransactionsRejectsUnknownStatus(t *testing.T) {
	svc := NewService(nil, Config{})
	_, err := svc.Ledger.ListTransactions(context.Background(), store.TransactionFilter{Status: "bogus"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

type fakeInvoices struct {
	err   error
	calls []string
}

func (f *fakeInvoices) CreateInvoice(_ context.Context, amount decimal.Decimal, asset, correlationID string) (*cryptopay.Invoice, error) {
	f.calls = append(f.calls, correlationID)
	if f.err != nil {
		return nil, f.err
	}
	return &cryptopay.Invoice{InvoiceID: "77", PayURL: "https://t.me/CryptoBot?start=" + correlationID}, nil
}

func TestCreateDepositInvoice(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("success", func(t *testing.T) {
				inv := &fakeInvoices{}
				svc := NewService(b.open(t), Config{DefaultAsset: "TON"}, WithInvoiceCreator(inv))

				tx, err := svc.Ledger.CreateDepositInvoice(ctx, "I", dec(t, "2"), "USDT")
				if err != nil {
					t.Fatalf("CreateDepositInvoice: %v", err)
				}
				if len(inv.calls) != 1 || inv.calls[0] != tx.ID {
					t.Errorf("correlation ids: got %v, want [%s]", inv.calls, tx.ID)
				}
				got, err := svc.Ledger.GetTransaction(ctx, tx.ID)
				if err != nil {
					t.Fatalf("GetTransaction: %v", err)
				}
				if store.StrVal(got.InvoiceID) != "77" || store.StrVal(got.PayURL) == "" {
					t.Errorf("invoice not attached: %+v", got)
				}
			})

			t.Run("processor down", func(t *testing.T) {
				inv := &fakeInvoices{err: errors.New("connection refused")}
				svc := NewService(b.open(t), Config{DefaultAsset: "TON"}, WithInvoiceCreator(inv))

				tx, err := svc.Ledger.CreateDepositInvoice(ctx, "I", dec(t, "2"), "")
				if !errors.Is(err, ErrInvoiceUnavailable) {
					t.Fatalf("got %v, want ErrInvoiceUnavailable", err)
				}
				if tx == nil || tx.Status != store.StatusPending {
					t.Fatalf("pending transaction not returned: %+v", tx)
				}
				assertBalance(t, svc, "I", "0")
			})

			t.Run("no creator", func(t *testing.T) {
				svc := NewService(b.open(t), Config{})
				if _, err := svc.Ledger.CreateDepositInvoice(ctx, "I", dec(t, "2"), ""); !errors.Is(err, ErrNoInvoiceCreator) {
					t.Errorf("got %v, want ErrNoInvoiceCreator", err)
				}
			})
		})
	}
}
