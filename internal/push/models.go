// internal/push/models.go
// Push channel message payloads and session records

package push

import "time"

// Message kinds carried on the push channel. Every payload carries a
// "type" discriminator and a timestamp.
const (
	KindBreachAlert  = "breach_alert"
	KindStatusUpdate = "monitoring_status"
	KindSystem       = "system_notification"
	KindBroadcast    = "broadcast"
)

// Item check statuses pushed by the realtime loop
const (
	StatusChecked = "CHECKED"
	StatusError   = "ERROR"
)

// SessionInfo is a snapshot of one live push-channel connection
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// RegistryStats is an aggregate snapshot of the session registry
type RegistryStats struct {
	CurrentConnections   int             `json:"current_connections"`
	TotalConnectionsEver int64           `json:"total_connections_ever"`
	UniqueUsers          int             `json:"unique_users"`
	PerUserSessionCounts map[int64]int   `json:"per_user_session_counts"`
}

// AlertPayload is the wire shape of a breach alert push
type AlertPayload struct {
	Type       string    `json:"type"`
	AlertID    string    `json:"alert_id"`
	ItemID     int64     `json:"item_id"`
	ItemValue  string    `json:"item_value"`
	ItemType   string    `json:"item_type"`
	BreachName string    `json:"breach_name"`
	Severity   string    `json:"severity"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatusPayload is the wire shape of a monitoring status push
type StatusPayload struct {
	Type      string    `json:"type"`
	ItemID    int64     `json:"item_id"`
	ItemValue string    `json:"item_value"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemPayload is the wire shape of a system notification push
type SystemPayload struct {
	Type      string                 `json:"type"`
	Kind      string                 `json:"kind"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// BroadcastPayload is the wire shape of a broadcast push
type BroadcastPayload struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}
