package store

import (
	"context"
	"database/sql"
	"fmt"

	"windseat/internal/domain"
	txcontext "windseat/pkg/platform/tx"
)

// PostgresStore persists UTM stats in PostgreSQL.
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

func (s *PostgresStore) IncStarts(ctx context.Context, keyword string) error {
	query := `
		INSERT INTO utm_stats (keyword, starts) VALUES ($1, 1)
		ON CONFLICT (keyword) DO UPDATE SET starts = utm_stats.starts + 1
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, keyword); err != nil {
		return fmt.Errorf("increment utm starts: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncBuys(ctx context.Context, keyword string) error {
	query := `
		INSERT INTO utm_stats (keyword, buys) VALUES ($1, 1)
		ON CONFLICT (keyword) DO UPDATE SET buys = utm_stats.buys + 1
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, keyword); err != nil {
		return fmt.Errorf("increment utm buys: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddAmount(ctx context.Context, keyword string, amount int64) error {
	query := `
		INSERT INTO utm_stats (keyword, amount) VALUES ($1, $2)
		ON CONFLICT (keyword) DO UPDATE SET amount = utm_stats.amount + $2
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, keyword, amount); err != nil {
		return fmt.Errorf("add utm amount: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, keyword string) (*domain.UtmStat, error) {
	query := `SELECT keyword, starts, buys, amount FROM utm_stats WHERE keyword = $1`
	var stat domain.UtmStat
	err := s.execer(ctx).QueryRowContext(ctx, query, keyword).Scan(
		&stat.Keyword, &stat.Starts, &stat.Buys, &stat.Amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get utm stat: %w", err)
	}
	return &stat, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.UtmStat, error) {
	query := `SELECT keyword, starts, buys, amount FROM utm_stats ORDER BY keyword`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list utm stats: %w", err)
	}
	defer rows.Close()

	var stats []*domain.UtmStat
	for rows.Next() {
		var stat domain.UtmStat
		if err := rows.Scan(&stat.Keyword, &stat.Starts, &stat.Buys, &stat.Amount); err != nil {
			return nil, fmt.Errorf("scan utm stat: %w", err)
		}
		stats = append(stats, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate utm stats: %w", err)
	}
	return stats, nil
}
