package store

import (
	"context"
	"database/sql"
	"fmt"

	"windseat/internal/domain"
	txcontext "windseat/pkg/platform/tx"
)

// PostgresStore persists users and wallets in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, tg_id, username, referrer FROM users WHERE id = $1`
	return s.scanUser(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) GetByTelegram(ctx context.Context, tgID int64) (*domain.User, error) {
	query := `SELECT id, tg_id, username, referrer FROM users WHERE tg_id = $1`
	return s.scanUser(s.execer(ctx).QueryRowContext(ctx, query, tgID))
}

func (s *PostgresStore) Ensure(ctx context.Context, tgID int64, username string) (*domain.User, error) {
	query := `
		INSERT INTO users (tg_id, username)
		VALUES ($1, $2)
		ON CONFLICT (tg_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, tg_id, username, referrer
	`
	user, err := s.scanUser(s.execer(ctx).QueryRowContext(ctx, query, tgID, username))
	if err != nil {
		return nil, err
	}
	walletQuery := `
		INSERT INTO wallets (user_id, balance, free_credit, referral_earned)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.execer(ctx).ExecContext(ctx, walletQuery, user.ID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return user, nil
}

// SetReferrer is conditional on referrer still being NULL so the link is
// written at most once regardless of how many ref links the user opens.
func (s *PostgresStore) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	query := `UPDATE users SET referrer = $1 WHERE id = $2 AND referrer IS NULL`
	res, err := s.execer(ctx).ExecContext(ctx, query, referrerID, userID)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set referrer rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, free_credit, referral_earned FROM wallets WHERE user_id = $1`
	var w domain.Wallet
	err := s.execer(ctx).QueryRowContext(ctx, query, userID).Scan(
		&w.UserID, &w.Balance, &w.FreeCredit, &w.ReferralEarned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) CreditReferral(ctx context.Context, userID, amount int64) error {
	query := `
		UPDATE wallets
		SET balance = balance + $1, referral_earned = referral_earned + $1
		WHERE user_id = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("credit referral: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit referral rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("credit referral: wallet for user %d not found", userID)
	}
	return nil
}

func (s *PostgresStore) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE referrer = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var referrer sql.NullInt64
	err := row.Scan(&u.ID, &u.TgID, &u.Username, &referrer)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if referrer.Valid {
		u.Referrer = &referrer.Int64
	}
	return &u, nil
}
