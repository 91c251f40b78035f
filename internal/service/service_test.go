package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/store/memory"
	"github.com/hance08/keapay/internal/store/sqlite"
	"github.com/hance08/keapay/migrations"
)

type backend struct {
	name string
	open func(t *testing.T) store.Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) store.Store { return memory.New() }},
		{"sqlite", func(t *testing.T) store.Store {
			t.Helper()
			s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "keapay.db"), migrations.FS, migrations.SQLiteDir)
			if err != nil {
				t.Fatalf("sqlite.NewStore: %v", err)
			}
			t.Cleanup(func() {
				_ = s.Close()
			})
			return s
		}},
	}
}

// forEachBackend runs fn once per store backend with a fresh Service.
func forEachBackend(t *testing.T, fn func(t *testing.T, svc *Service, st store.Store)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			st := b.open(t)
			svc := NewService(st, Config{DefaultAsset: "TON"}, WithLogger(zaptest.NewLogger(t)))
			fn(t, svc, st)
		})
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func assertBalance(t *testing.T, svc *Service, accountID, want string) {
	t.Helper()
	got, err := svc.Ledger.GetBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetBalance(%s): %v", accountID, err)
	}
	if !got.Equal(dec(t, want)) {
		t.Errorf("balance of %s: got %s, want %s", accountID, got, want)
	}
}

// fund credits accountID through a confirmed deposit.
func fund(t *testing.T, svc *Service, accountID, amount string) {
	t.Helper()
	ctx := context.Background()
	tx, err := svc.Ledger.RequestDeposit(ctx, accountID, dec(t, amount), "TON")
	if err != nil {
		t.Fatalf("RequestDeposit: %v", err)
	}
	conf, err := svc.Ledger.ConfirmDeposit(ctx, store.StrVal(tx.ExternalRef), dec(t, amount), "TON")
	if err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}
	if conf.Result != Applied {
		t.Fatalf("ConfirmDeposit: got %+v, want applied", conf)
	}
}
