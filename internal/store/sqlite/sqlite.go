// Package sqlite implements the account store and transaction log on SQLite.
//
// Every ExecTx scope starts with BEGIN IMMEDIATE, which takes the database
// write lock up front. Writers are therefore serialized across all accounts,
// which is stronger than the per-account ordering the ledger needs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "github.com/mattn/go-sqlite3"

	"github.com/hance08/keapay/internal/store"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ store.Store = (*Store)(nil)

type Store struct {
	db DBTX
}

// NewStore opens (creating if needed) the database at dbPath and applies
// the migrations found under dir in migrationsFS.
func NewStore(dbPath string, migrationsFS fs.FS, dir string) (*Store, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("can not create database directory %s: %w", dbDir, err)
	}

	dsn := "file:" + dbPath + "?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("can not open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("can not connect with database: %w", err)
	}
	if err := runMigrations(db, migrationsFS, dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) ExecTx(ctx context.Context, fn func(store.Repository) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return store.ErrNestedTx
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("begin transaction", err)
	}

	txStore := &Store{db: tx}

	err = fn(txStore)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w, rb err: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr("commit transaction", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return nil
	}
	if err := db.PingContext(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	if db, ok := s.db.(*sql.DB); ok {
		return db.Close()
	}
	return nil
}

func runMigrations(db *sql.DB, migrationsFS fs.FS, dir string) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to set up migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to set up migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration(up): %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite.ErrConstraintUnique
	}
	return false
}

func isCheckViolation(err error) bool {
	var sqliteErr sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite.ErrConstraintCheck
	}
	return false
}

// mapErr wraps a driver failure as store.ErrStorageUnavailable so callers
// can tell it apart from domain outcomes. Corrupt rows and check violations
// are permanent and keep their own sentinel.
func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrCorruptRecord):
		return fmt.Errorf("sqlite: %s: %w", op, err)
	case isCheckViolation(err):
		return fmt.Errorf("sqlite: %s: %w: %w", op, store.ErrConstraintViolation, err)
	}
	return fmt.Errorf("sqlite: %s: %w: %w", op, store.ErrStorageUnavailable, err)
}
