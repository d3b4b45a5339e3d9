// internal/monitoring/models.go
// Monitoring item domain model and request/response types

package monitoring

import "time"

// CheckFrequency is the tier that decides which scheduler loop owns an item
// and the minimum re-check interval.
type CheckFrequency string

const (
	FrequencyRealTime CheckFrequency = "REAL_TIME"
	FrequencyHourly   CheckFrequency = "HOURLY"
	FrequencyDaily    CheckFrequency = "DAILY"
	FrequencyWeekly   CheckFrequency = "WEEKLY"
)

// Valid reports whether f is a known frequency tier
func (f CheckFrequency) Valid() bool {
	switch f {
	case FrequencyRealTime, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// Interval returns the minimum re-check interval for the tier
func (f CheckFrequency) Interval() time.Duration {
	switch f {
	case FrequencyRealTime:
		return 5 * time.Minute
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// MonitorType classifies what kind of value an item watches
type MonitorType string

const (
	TypeEmail    MonitorType = "EMAIL"
	TypeDomain   MonitorType = "DOMAIN"
	TypeKeyword  MonitorType = "KEYWORD"
	TypeUsername MonitorType = "USERNAME"
)

// Valid reports whether t is a known monitor type
func (t MonitorType) Valid() bool {
	switch t {
	case TypeEmail, TypeDomain, TypeKeyword, TypeUsername:
		return true
	}
	return false
}

// Item is a single user-defined watch target
type Item struct {
	ID             int64          `db:"id" json:"id"`
	UserID         int64          `db:"user_id" json:"user_id"`
	Value          string         `db:"value" json:"value"`
	Type           MonitorType    `db:"type" json:"type"`
	CheckFrequency CheckFrequency `db:"check_frequency" json:"check_frequency"`
	IsActive       bool           `db:"is_active" json:"is_active"`
	LastCheckedAt  *time.Time     `db:"last_checked_at" json:"last_checked_at,omitempty"`
	BreachCount    int            `db:"breach_count" json:"breach_count"`
	AlertCount     int            `db:"alert_count" json:"alert_count"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// CreateItemRequest is the payload for creating a monitoring item
type CreateItemRequest struct {
	Value          string `json:"value" validate:"required,min=2,max=255"`
	Type           string `json:"type" validate:"required,oneof=EMAIL DOMAIN KEYWORD USERNAME"`
	CheckFrequency string `json:"check_frequency" validate:"required,oneof=REAL_TIME HOURLY DAILY WEEKLY"`
}

// UpdateItemRequest is the payload for updating a monitoring item
type UpdateItemRequest struct {
	CheckFrequency *string `json:"check_frequency,omitempty" validate:"omitempty,oneof=REAL_TIME HOURLY DAILY WEEKLY"`
	IsActive       *bool   `json:"is_active,omitempty"`
}
