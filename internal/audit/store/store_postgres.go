package store

import (
	"context"
	"database/sql"
	"fmt"

	"windseat/internal/audit"
	txcontext "windseat/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

var _ audit.EventStore = (*PostgresStore)(nil)

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, e *audit.Event) error {
	query := `
		INSERT INTO order_log (id, order_id, event, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.execer(ctx).ExecContext(ctx, query, e.ID, e.OrderID, e.Event, e.At.UTC())
	if err != nil {
		return fmt.Errorf("append order log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByOrder(ctx context.Context, orderID int64) ([]*audit.Event, error) {
	query := `
		SELECT id, order_id, event, created_at
		FROM order_log
		WHERE order_id = $1
		ORDER BY created_at, id`

	rows, err := s.execer(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order log: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Event, &e.At); err != nil {
			return nil, fmt.Errorf("scan order log event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order log: %w", err)
	}
	return events, nil
}
