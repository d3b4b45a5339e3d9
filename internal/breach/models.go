// internal/breach/models.go
// Breach records and alerts raised for monitoring items

package breach

import "time"

// Record is one breach occurrence returned by the breach data source
type Record struct {
	BreachName string    `json:"breach_name"`
	Title      string    `json:"title"`
	Domain     string    `json:"domain"`
	BreachDate time.Time `json:"breach_date"`
	DataTypes  []string  `json:"data_types"`
	Severity   string    `json:"severity"`
	Value      string    `json:"value"` // the matched watch value, set on bulk lookups
}

// Alert is a persisted notification that a monitored value appeared in a breach
type Alert struct {
	ID         string    `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	ItemID     int64     `db:"item_id" json:"item_id"`
	BreachName string    `db:"breach_name" json:"breach_name"`
	Severity   string    `db:"severity" json:"severity"`
	Details    string    `db:"details" json:"details"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)
