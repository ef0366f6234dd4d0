// Package store opens the SQLite database that holds the normalized
// cell-count model and classifies the constraint errors it reports.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Options controls how the database is opened.
type Options struct {
	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{BusyTimeout: 5 * time.Second}
}

// Open opens (creating if needed) the database at path with foreign keys
// enforced. The handle is limited to one connection: every command runs a
// single thread of control and the loader holds one transaction for the
// whole load.
func Open(ctx context.Context, path string, opts Options) (*sqlx.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, cerrors.NewStorageError(cerrors.CodeStoreUnavailable, "create database directory", err)
			}
		}
	}

	busy := int(opts.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", path, busy)

	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, cerrors.NewStorageError(cerrors.CodeStoreUnavailable, "open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, cerrors.NewStorageError(cerrors.CodeStoreUnavailable, "ping sqlite", err)
	}
	return db, nil
}

// ConstraintKind names the integrity rule a failed statement violated.
type ConstraintKind string

const (
	ConstraintNone       ConstraintKind = ""
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintOther      ConstraintKind = "other"
)

// ClassifyConstraint inspects err for a SQLite constraint violation.
// Primary-key and unique violations both report ConstraintUnique.
func ClassifyConstraint(err error) ConstraintKind {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return ConstraintNone
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		return ConstraintUnique
	case sqlite3.ErrConstraintForeignKey:
		return ConstraintForeignKey
	case sqlite3.ErrConstraintCheck:
		return ConstraintCheck
	case sqlite3.ErrConstraintNotNull:
		return ConstraintNotNull
	default:
		return ConstraintOther
	}
}

// IsConstraintViolation reports whether err is any SQLite constraint failure.
func IsConstraintViolation(err error) bool {
	return ClassifyConstraint(err) != ConstraintNone
}
