package domain

// User is a buyer identity reachable through the chat platform. Referrer is
// set at most once and never to the user itself.
type User struct {
	ID       int64
	TgID     int64
	Username string
	Referrer *int64
}

// Wallet holds a user's balances in currency minor units. All fields are
// non-negative; within this core only the referral ledger credits them.
type Wallet struct {
	UserID         int64
	Balance        int64
	FreeCredit     int64
	ReferralEarned int64
}
