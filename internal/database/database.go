package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps the on-device SQLite store. One process owns the file; a single
// active tab/process per profile is assumed, so there is no cross-process
// locking beyond SQLite's own.
type DB struct {
	SQL    *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the device database and applies the schema.
// ":memory:" is accepted for tests.
func Open(path string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// The modernc driver is not safe for concurrent writers on one
	// connection; serialize through a single connection and let
	// busy_timeout absorb contention.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	logger.Info("database opened", slog.String("path", path))

	return &DB{SQL: db, logger: logger}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database")
	_ = db.SQL.Close()
}

// HealthCheck verifies the store answers queries.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.SQL.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// MapStorageError maps driver errors onto the model taxonomy.
func MapStorageError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return models.ErrConflict
		}
	}

	return err
}

// WithTx runs fn inside one transaction so a logical operation (attempt
// counter bump, ledger append, session update) cannot interleave with
// another operation on the same profile.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}
