package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hance08/keapay/internal/config"
	"github.com/hance08/keapay/internal/cryptopay"
	"github.com/hance08/keapay/internal/service"
	"github.com/hance08/keapay/internal/store"
	"github.com/hance08/keapay/internal/store/memory"
	"github.com/hance08/keapay/internal/store/postgres"
	"github.com/hance08/keapay/internal/store/sqlite"
	"github.com/hance08/keapay/migrations"
)

type App struct {
	Config  *config.Config
	Service *service.Service
	Store   store.Store
	Logger  *zap.Logger
}

// NewApp opens the configured store, runs its migrations and wires the
// ledger, reconciler and (when a token is set) the Crypto Pay client.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	opts := []service.Option{service.WithLogger(logger)}
	if cfg.CryptoPay.Token != "" {
		client := cryptopay.NewClient(cryptopay.Config{
			Token:   cfg.CryptoPay.Token,
			BaseURL: cfg.CryptoPay.BaseURL,
			Timeout: cfg.CryptoPay.Timeout,
		}, logger.Named("cryptopay"))
		opts = append(opts, service.WithInvoiceCreator(client))
	} else {
		logger.Info("crypto pay token not set, deposits are recorded without invoices")
	}

	svc := service.NewService(st, service.Config{DefaultAsset: cfg.Defaults.Asset}, opts...)

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", zap.Error(err))
		}
	}

	return &App{
		Config:  cfg,
		Service: svc,
		Store:   st,
		Logger:  logger,
	}, cleanup, nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (store.Store, error) {
	switch db.Driver {
	case "", config.DriverSQLite:
		path, err := DatabasePath(db)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(path, migrations.FS, migrations.SQLiteDir)
	case config.DriverPostgres:
		if db.URL == "" {
			return nil, fmt.Errorf("database.url is required for the postgres driver")
		}
		return postgres.NewStore(ctx, db.URL, db.MaxConns, migrations.FS, migrations.PostgresDir)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

// DatabasePath resolves the sqlite file location, defaulting to keapay.db in
// the app data directory and expanding a leading ~.
func DatabasePath(db config.DatabaseConfig) (string, error) {
	if db.Path == "" {
		appDir, err := DataDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(appDir, "keapay.db"), nil
	}
	return expandPath(db.Path)
}

// DataDir is where the config file and the default database live.
func DataDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to determine user home directory: %w", err)
		}
		return filepath.Join(home, ".keapay"), nil
	}

	return filepath.Join(configDir, "keapay"), nil
}

func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	if path[1] == '/' || path[1] == '\\' {
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
