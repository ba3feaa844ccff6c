package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"windseat/internal/domain"
	txcontext "windseat/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (user_id, amount, utm_keyword, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	o.CreatedAt = o.CreatedAt.UTC()
	err := s.execer(ctx).QueryRowContext(ctx, query,
		o.UserID, o.Amount, o.UtmKeyword, o.Status, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*domain.Order, error) {
	query := `
		SELECT id, user_id, amount, utm_keyword, status, seat_id,
		       created_at, approved_at, twofa_count, twofa_last, twofa_disabled
		FROM orders
		WHERE id = $1`

	o, err := scanOrder(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) MarkReceipt(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1
		WHERE id = $2 AND status IN ($3, $1)`

	res, err := s.execer(ctx).ExecContext(ctx, query,
		domain.OrderStatusReceipt, id, domain.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark receipt rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) MarkDecided(ctx context.Context, id int64, status domain.OrderStatus, seatID *int64, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1, seat_id = $2, approved_at = $3
		WHERE id = $4 AND status IN ($5, $6)`

	// approved_at marks the moment a seat was handed out; rejections keep it
	// NULL.
	var approvedAt any
	if status == domain.OrderStatusApproved {
		approvedAt = at.UTC()
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		status, seatID, approvedAt, id,
		domain.OrderStatusPending, domain.OrderStatusReceipt)
	if err != nil {
		return false, fmt.Errorf("mark decided: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark decided rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := `
		SELECT id, user_id, amount, utm_keyword, status, seat_id,
		       created_at, approved_at, twofa_count, twofa_last, twofa_disabled
		FROM orders
		WHERE user_id = $1
		ORDER BY id DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) AdvanceTwofa(ctx context.Context, id int64, prevCount int, at time.Time, disable bool) (bool, error) {
	query := `
		UPDATE orders
		SET twofa_count = twofa_count + 1, twofa_last = $1, twofa_disabled = $2
		WHERE id = $3 AND twofa_count = $4 AND twofa_disabled = FALSE`

	res, err := s.execer(ctx).ExecContext(ctx, query, at.UTC(), disable, id, prevCount)
	if err != nil {
		return false, fmt.Errorf("advance twofa: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance twofa rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) DisableTwofa(ctx context.Context, id int64) error {
	query := `UPDATE orders SET twofa_disabled = TRUE WHERE id = $1`

	if _, err := s.execer(ctx).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("disable twofa: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o        domain.Order
		seatID   sql.NullInt64
		approved sql.NullTime
		last     sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Amount, &o.UtmKeyword, &o.Status, &seatID,
		&o.CreatedAt, &approved, &o.TwofaCount, &last, &o.TwofaDisabled,
	)
	if err != nil {
		return nil, err
	}
	if seatID.Valid {
		o.SeatID = &seatID.Int64
	}
	if approved.Valid {
		t := approved.Time
		o.ApprovedAt = &t
	}
	if last.Valid {
		t := last.Time
		o.TwofaLast = &t
	}
	return &o, nil
}
