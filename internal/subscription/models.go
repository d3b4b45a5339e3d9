// internal/subscription/models.go
// Subscription plan model

package subscription

import (
	"time"

	"github.com/lib/pq"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
)

// Plan describes what a subscription tier entitles a user to
type Plan struct {
	ID                 int64          `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	MaxItems           int            `db:"max_items" json:"max_items"`
	RealTimeEnabled    bool           `db:"real_time_enabled" json:"real_time_enabled"`
	AllowedFrequencies pq.StringArray `db:"allowed_frequencies" json:"allowed_frequencies"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// Feature names gated per plan
const (
	FeatureRealTime      = "real_time_monitoring"
	FeatureConsultations = "expert_consultations"
)

// AllowsTier reports whether the plan permits the given check frequency
func (p *Plan) AllowsTier(tier monitoring.CheckFrequency) bool {
	if tier == monitoring.FrequencyRealTime && !p.RealTimeEnabled {
		return false
	}
	for _, f := range p.AllowedFrequencies {
		if f == string(tier) {
			return true
		}
	}
	return false
}

// AllowsFeature reports whether the plan includes a named feature
func (p *Plan) AllowsFeature(feature string) bool {
	if feature == FeatureRealTime {
		return p.RealTimeEnabled
	}
	// Non-frequency features ride on plan name for now
	return p.Name == "pro" || p.Name == "enterprise"
}
