// Package postgres implements the account store and transaction log on
// PostgreSQL through a pgx connection pool. Balance rows are locked with
// SELECT ... FOR UPDATE, so scopes touching different accounts run in
// parallel.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/hance08/keapay/internal/store"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ store.Store = (*Store)(nil)

type Store struct {
	db DBTX
}

// NewStore connects to url, sizes the pool to maxConns (when > 0) and
// applies the migrations found under dir in migrationsFS.
func NewStore(ctx context.Context, url string, maxConns int32, migrationsFS fs.FS, dir string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("can not open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("can not connect with database: %w", err)
	}
	if err := runMigrations(pool, migrationsFS, dir); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: pool}, nil
}

func (s *Store) ExecTx(ctx context.Context, fn func(store.Repository) error) error {
	pool, ok := s.db.(*pgxpool.Pool)
	if !ok {
		return store.ErrNestedTx
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return mapErr("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr("commit transaction", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	pool, ok := s.db.(*pgxpool.Pool)
	if !ok {
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	if pool, ok := s.db.(*pgxpool.Pool); ok {
		pool.Close()
	}
	return nil
}

func runMigrations(pool *pgxpool.Pool, migrationsFS fs.FS, dir string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		_ = db.Close()
	}()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("failed to set up migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", driver)
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolation
}

func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrCorruptRecord):
		return fmt.Errorf("postgres: %s: %w", op, err)
	case isCheckViolation(err):
		return fmt.Errorf("postgres: %s: %w: %w", op, store.ErrConstraintViolation, err)
	}
	return fmt.Errorf("postgres: %s: %w: %w", op, store.ErrStorageUnavailable, err)
}
