package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/hance08/keapay/internal/config"
	"github.com/hance08/keapay/internal/service"
)

func TestNewAppDrivers(t *testing.T) {
	tests := []struct {
		name    string
		db      config.DatabaseConfig
		wantErr bool
	}{
		{"memory", config.DatabaseConfig{Driver: config.DriverMemory}, false},
		{"sqlite", config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "sub", "k.db")}, false},
		{"postgres without url", config.DatabaseConfig{Driver: config.DriverPostgres}, true},
		{"unknown", config.DatabaseConfig{Driver: "oracle"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefault()
			cfg.Database = tt.db

			a, cleanup, err := NewApp(context.Background(), cfg, zaptest.NewLogger(t))
			if tt.wantErr {
				if err == nil {
					cleanup()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewApp: %v", err)
			}
			defer cleanup()

			ctx := context.Background()
			tx, err := a.Service.Ledger.RequestDeposit(ctx, "1", decimal.NewFromInt(2), "")
			if err != nil {
				t.Fatalf("RequestDeposit: %v", err)
			}
			if tx.Asset != "TON" {
				t.Errorf("asset: got %q, want TON", tx.Asset)
			}
			if _, err := a.Service.Ledger.CreateDepositInvoice(ctx, "1", decimal.NewFromInt(2), ""); !errors.Is(err, service.ErrNoInvoiceCreator) {
				t.Errorf("invoice without token: got %v", err)
			}
		})
	}
}

func TestNewAppWiresInvoiceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"invoice_id":77,"pay_url":"https://t.me/pay"}}`))
	}))
	defer srv.Close()

	cfg := config.NewDefault()
	cfg.Database.Driver = config.DriverMemory
	cfg.CryptoPay.Token = "token"
	cfg.CryptoPay.BaseURL = srv.URL

	a, cleanup, err := NewApp(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer cleanup()

	tx, err := a.Service.Ledger.CreateDepositInvoice(context.Background(), "9", decimal.NewFromInt(1), "USDT")
	if err != nil {
		t.Fatalf("CreateDepositInvoice: %v", err)
	}
	if tx.InvoiceID == nil || *tx.InvoiceID != "77" {
		t.Errorf("invoice id: %v", tx.InvoiceID)
	}
}

func TestDatabasePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := DatabasePath(config.DatabaseConfig{Path: "~/ledger/k.db"})
	if err != nil {
		t.Fatalf("DatabasePath: %v", err)
	}
	if want := filepath.Join(home, "ledger", "k.db"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, err = DatabasePath(config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("DatabasePath: %v", err)
	}
	if filepath.Base(got) != "keapay.db" {
		t.Errorf("default path: %q", got)
	}
}
