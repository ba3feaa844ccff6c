// Package tx carries a SQL transaction through context so feature stores can
// join the caller's transaction without widening their signatures. Stores pick
// the transaction from context when present and fall back to their own
// connection otherwise.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner provides a transactional boundary for multi-store mutations.
// Implementations wrap a database transaction or, in-memory, a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs fn inside a database transaction injected into the context.
// Any error from fn rolls the whole transaction back.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if existing, ok := From(ctx); ok && existing != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Restorer captures a store's state and hands back a function that puts it
// back. In-memory stores implement it so MutexRunner can undo a failed fn.
type Restorer interface {
	Snapshot() func()
}

// MutexRunner serializes transactions behind a single mutex. It backs the
// in-memory stores, where a coarse lock stands in for row-level locking and
// snapshots stand in for rollback: if fn fails, every registered store is
// restored to its state from before the call.
type MutexRunner struct {
	mu     sync.Mutex
	stores []Restorer
}

func NewMutexRunner(stores ...Restorer) *MutexRunner {
	return &MutexRunner{stores: stores}
}

func (r *MutexRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), len(r.stores))
	for i, s := range r.stores {
		restores[i] = s.Snapshot()
	}
	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
