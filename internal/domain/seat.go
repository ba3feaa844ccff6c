package domain

// SeatStatus is the lifecycle of a provisioned VPN account.
type SeatStatus string

const (
	SeatActive   SeatStatus = "active"
	SeatDisabled SeatStatus = "disabled"
)

// Seat is a provisioned VPN account whose capacity (MaxSlots) is shared
// across buyers. Credentials are stored encrypted; only outbound delivery
// decrypts them. Sold is mutated exclusively by the inventory store's atomic
// allocate; Status by the operator disable action. Seats are never deleted,
// only soft-disabled.
type Seat struct {
	ID          int64
	UsernameEnc []byte
	PassEnc     []byte
	SecretEnc   []byte
	MaxSlots    int
	Sold        int
	Status      SeatStatus
}

// HasCapacity reports whether one more unit can be assigned.
func (s Seat) HasCapacity() bool {
	return s.Status == SeatActive && s.Sold < s.MaxSlots
}

// SlotsLeft is the unassigned remainder of the seat's capacity.
func (s Seat) SlotsLeft() int {
	return s.MaxSlots - s.Sold
}

// Credentials is the decrypted delivery payload returned on approval. The
// TOTP secret is deliberately absent: it stays encrypted at rest and is only
// used server-side for code generation.
type Credentials struct {
	SeatID    int64
	Username  string
	Password  string
	SlotsLeft int
}
