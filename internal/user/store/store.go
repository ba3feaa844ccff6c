// Package store persists users and their wallets. Wallets are created with
// the user and mutated only through the credit operation, which the referral
// ledger invokes inside the approval transaction.
package store

import (
	"context"

	"windseat/internal/domain"
)

// UserStore is implemented by the Postgres store and the in-memory store.
type UserStore interface {
	// Get returns a user by id, nil when absent.
	Get(ctx context.Context, id int64) (*domain.User, error)

	// GetByTelegram returns a user by chat-platform id, nil when absent.
	GetByTelegram(ctx context.Context, tgID int64) (*domain.User, error)

	// Ensure creates the user (and an empty wallet) on first contact and
	// returns the existing record afterwards.
	Ensure(ctx context.Context, tgID int64, username string) (*domain.User, error)

	// SetReferrer records the referrer once. Returns false when the user
	// already has one.
	SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error)

	// GetWallet returns the user's wallet, nil when the user is absent.
	GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error)

	// CreditReferral atomically adds amount to both balance and
	// referral_earned.
	CreditReferral(ctx context.Context, userID, amount int64) error

	// CountReferrals counts users referred by the given user.
	CountReferrals(ctx context.Context, userID int64) (int64, error)
}
