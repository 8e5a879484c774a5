// Package storage implements the storage engine: a durable relational store
// of documents, symbols, occurrences, and relationships over a single
// SQLite database file per branch cache.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo

	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/logging"
)

// DB is a database connection with schema lifecycle and transaction helpers.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the database file at path. In read-write mode
// (readOnly=false) a missing file is created and the schema initialized; in
// read-only mode a missing file is a CacheNotFound error.
func Open(path string, readOnly bool, logger *logging.Logger) (*DB, error) {
	exists := fileExists(path)

	if readOnly && !exists {
		return nil, errors.New(errors.CacheNotFound, "database does not exist: "+path, nil)
	}

	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(errors.OpenFailed, "failed to create database directory", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.OpenFailed, "failed to open database at "+path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-80000", // ~80 MiB
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, errors.New(errors.OpenFailed, "failed to set pragma: "+pragma, err)
		}
	}

	db := &DB{conn: conn, logger: logger, dbPath: path}

	if !exists {
		logger.Info("creating new index database", map[string]interface{}{"path": path})
		if err := db.initializeSchema(); err != nil {
			conn.Close() //nolint:errcheck
			return nil, errors.New(errors.SchemaCreation, "failed to initialize schema", err)
		}
	} else {
		if err := db.runMigrations(); err != nil {
			conn.Close() //nolint:errcheck
			return nil, errors.New(errors.SchemaCreation, "failed to migrate schema", err)
		}
	}

	return db, nil
}

// Path returns the database file path this DB was opened from.
func (db *DB) Path() string { return db.dbPath }

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying *sql.DB.
func (db *DB) Conn() *sql.DB { return db.conn }

// WithTx runs fn within a transaction, committing on success and rolling
// back (re-panicking on panic) otherwise.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback() //nolint:errcheck
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Exec executes a query without returning rows.
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
