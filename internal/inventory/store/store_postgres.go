package store

import (
	"context"
	"database/sql"
	"fmt"

	"windseat/internal/domain"
	txcontext "windseat/pkg/platform/tx"
)

// PostgresStore persists seats in PostgreSQL.
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

// AllocateOne is a single UPDATE so the pick and the increment commit (or
// abort) together, inside the caller's transaction when one is in context.
// The subquery takes a row lock; the outer WHERE re-checks capacity after any
// lock wait, so a racing allocator that filled the seat first turns this into
// zero rows instead of an oversell.
func (s *PostgresStore) AllocateOne(ctx context.Context) (*domain.Seat, error) {
	query := `
		UPDATE seats SET sold = sold + 1
		WHERE id = (
			SELECT id FROM seats
			WHERE status = 'active' AND sold < max_slots
			ORDER BY sold DESC, id
			LIMIT 1
			FOR UPDATE
		)
		AND status = 'active' AND sold < max_slots
		RETURNING id, username_enc, pass_enc, secret_enc, max_slots, sold, status
	`
	seat, err := scanSeat(s.execer(ctx).QueryRowContext(ctx, query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoCapacity
		}
		return nil, fmt.Errorf("allocate seat: %w", err)
	}
	return seat, nil
}

func (s *PostgresStore) Insert(ctx context.Context, seat *domain.Seat) error {
	query := `
		INSERT INTO seats (username_enc, pass_enc, secret_enc, max_slots, sold, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		seat.UsernameEnc,
		seat.PassEnc,
		seat.SecretEnc,
		seat.MaxSlots,
		seat.Sold,
		string(seat.Status),
	).Scan(&seat.ID)
	if err != nil {
		return fmt.Errorf("insert seat: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*domain.Seat, error) {
	query := `
		SELECT id, username_enc, pass_enc, secret_enc, max_slots, sold, status
		FROM seats
		WHERE id = $1
	`
	seat, err := scanSeat(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get seat: %w", err)
	}
	return seat, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.Seat, error) {
	query := `
		SELECT id, username_enc, pass_enc, secret_enc, max_slots, sold, status
		FROM seats
		ORDER BY id DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []*domain.Seat
	for rows.Next() {
		var seat domain.Seat
		var status string
		if err := rows.Scan(&seat.ID, &seat.UsernameEnc, &seat.PassEnc, &seat.SecretEnc,
			&seat.MaxSlots, &seat.Sold, &status); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seat.Status = domain.SeatStatus(status)
		seats = append(seats, &seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seats: %w", err)
	}
	return seats, nil
}

func (s *PostgresStore) Disable(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE seats SET status = 'disabled' WHERE id = $1 AND status = 'active'`
	res, err := s.execer(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("disable seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("disable seat rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanSeat(row *sql.Row) (*domain.Seat, error) {
	var seat domain.Seat
	var status string
	err := row.Scan(&seat.ID, &seat.UsernameEnc, &seat.PassEnc, &seat.SecretEnc,
		&seat.MaxSlots, &seat.Sold, &status)
	if err != nil {
		return nil, err
	}
	seat.Status = domain.SeatStatus(status)
	return &seat, nil
}
