package weighting

import "time"

// Coefficient maps a metric name to its per-unit drip weight.
type Coefficient struct {
	Metric    string    `gorm:"primaryKey" json:"metric"`
	Weight    uint64    `json:"weight"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Coefficient) TableName() string {
	return "drip_coefficients"
}
