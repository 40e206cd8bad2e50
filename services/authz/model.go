package authz

import "time"

// AllowedSource is one owner-approved entry on the allow-list.
type AllowedSource struct {
	SourceID  string    `gorm:"column:source_id;primaryKey"`
	AddedBy   string    `gorm:"column:added_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AllowedSource) TableName() string {
	return "allowed_sources"
}
