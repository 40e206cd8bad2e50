package redeem

import "time"

const (
	StateAwaitingConfirmation = "awaiting_confirmation"
	StateFinalized            = "finalized"
	StateRefunded             = "refunded"
	StatePartiallyRefunded    = "partially_refunded"
)

// Redemption is the durable record of one redemption round. Rows in
// awaiting_confirmation mark the window between the pessimistic debit and
// the source's answer; the sweeper refunds any row stuck there.
type Redemption struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	AccountID string    `gorm:"index" json:"account_id"`
	SourceID  string    `json:"source_id"`
	Amount    uint64    `json:"amount"`
	Refund    uint64    `json:"refund"`
	Msg       string    `json:"msg"`
	State     string    `gorm:"index" json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Redemption) TableName() string {
	return "drip_redemptions"
}

// RedeemRequest carries the redemption parameters plus the attached payment
// and execution budget. Deposit must be exactly one payment unit; it is the
// caller's explicit authorization token, not a fee.
type RedeemRequest struct {
	Caller  string `json:"caller"`
	Source  string `json:"source"`
	Amount  uint64 `json:"amount"`
	Msg     string `json:"msg"`
	Deposit uint64 `json:"deposit"`
	Budget  uint64 `json:"budget"`
}

// RedeemResult reports how one redemption settled.
type RedeemResult struct {
	ID       string `json:"id"`
	Redeemed uint64 `json:"redeemed"`
	Refund   uint64 `json:"refund"`
	State    string `json:"state"`
}
