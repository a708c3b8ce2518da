// Package buffer is the local durable queue: crash-safe persistence of
// undelivered sync batches, delivery history, and agent status. It is
// the only component that touches the buffer database; every operation
// runs as a single transaction so interleaved callers never observe a
// batch mid-update.
package buffer

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

type Queue struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the buffer database at path and
// applies the schema. WAL keeps writes durable across power loss
// without blocking the stats reads from the diag endpoint.
func Open(path string) (*Queue, error) {
	if path == "" {
		return nil, fmt.Errorf("empty buffer path")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create buffer directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open buffer: %w", err)
	}

	// Single connection: sqlite allows one writer, and the queue is
	// small enough that serializing readers too costs nothing.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping buffer: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply buffer schema: %w", err)
	}

	return &Queue{db: db}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// withTx runs fn in a new transaction, committing on success.
func (q *Queue) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
