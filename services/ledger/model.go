package ledger

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DirectionMint = "MINT"
	DirectionBurn = "BURN"
)

// JournalEntry records one committed ledger mutation. The journal is
// telemetry written after the fact; the in-memory ledger is authoritative.
type JournalEntry struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	AccountID string         `gorm:"column:account_id;index" json:"account_id"`
	SourceID  string         `gorm:"column:source_id" json:"source_id"`
	Direction string         `gorm:"column:direction" json:"direction"`
	Amount    uint64         `gorm:"column:amount" json:"amount"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (JournalEntry) TableName() string {
	return "drip_journal"
}
