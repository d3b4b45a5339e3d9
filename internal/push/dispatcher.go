// internal/push/dispatcher.go
// Best-effort delivery of alert/status/system/broadcast messages to
// connected clients. Fire-and-forget: callers never see transport errors.

package push

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
)

// Publisher is the transport behind the dispatcher. Implemented by the
// websocket hub; every method is safe for concurrent use.
type Publisher interface {
	PublishToUser(userID int64, data []byte) error
	PublishToTopic(userID int64, topic string, data []byte) error
	Broadcast(data []byte) int
}

// Topic destinations for dashboard aggregation
const TopicAlerts = "alerts"

// Dispatcher formats payloads and publishes them to per-user channels
type Dispatcher struct {
	registry  *Registry
	publisher Publisher
	wg        sync.WaitGroup
}

// NewDispatcher creates a new push dispatcher
func NewDispatcher(registry *Registry, publisher Publisher) *Dispatcher {
	return &Dispatcher{registry: registry, publisher: publisher}
}

// SendAlert pushes a breach alert to the owning user and, additionally, to
// the user's alert topic for dashboard aggregation. Returns whether a send
// was attempted (the user was online and the payload marshalled).
func (d *Dispatcher) SendAlert(userID int64, alert AlertPayload) bool {
	alert.Type = KindBreachAlert
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	data, ok := d.marshal(alert)
	if !ok || !d.registry.IsOnline(userID) {
		return false
	}

	d.publish(func() {
		if err := d.publisher.PublishToUser(userID, data); err != nil {
			log.Printf("Alert publish failed for user %d: %v", userID, err)
		}
		if err := d.publisher.PublishToTopic(userID, TopicAlerts, data); err != nil {
			log.Printf("Alert topic publish failed for user %d: %v", userID, err)
		}
	})
	return true
}

// SendStatus pushes a monitoring status update (CHECKED or ERROR) for one item
func (d *Dispatcher) SendStatus(item *monitoring.Item, status, details string) bool {
	payload := StatusPayload{
		Type:      KindStatusUpdate,
		ItemID:    item.ID,
		ItemValue: item.Value,
		Status:    status,
		Details:   details,
		Timestamp: time.Now(),
	}

	data, ok := d.marshal(payload)
	if !ok || !d.registry.IsOnline(item.UserID) {
		return false
	}

	userID := item.UserID
	d.publish(func() {
		if err := d.publisher.PublishToUser(userID, data); err != nil {
			log.Printf("Status publish failed for user %d: %v", userID, err)
		}
	})
	return true
}

// SendSystem pushes a system notification to one user
func (d *Dispatcher) SendSystem(userID int64, kind, title, message string, extra map[string]interface{}) bool {
	payload := SystemPayload{
		Type:      KindSystem,
		Kind:      kind,
		Title:     title,
		Message:   message,
		Data:      extra,
		Timestamp: time.Now(),
	}

	data, ok := d.marshal(payload)
	if !ok || !d.registry.IsOnline(userID) {
		return false
	}

	d.publish(func() {
		if err := d.publisher.PublishToUser(userID, data); err != nil {
			log.Printf("System publish failed for user %d: %v", userID, err)
		}
	})
	return true
}

// SendBroadcast pushes a message to every connected user and returns the
// number of online users it was addressed to.
func (d *Dispatcher) SendBroadcast(title, message, severity string) int {
	payload := BroadcastPayload{
		Type:      KindBroadcast,
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
	}

	data, ok := d.marshal(payload)
	if !ok {
		return 0
	}

	count := len(d.registry.OnlineUsers())
	d.publish(func() {
		d.publisher.Broadcast(data)
	})
	return count
}

// Close waits for in-flight publishes to drain
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// publish runs fn asynchronously; panics and errors stop here, never at the
// scheduling loop that triggered the send.
func (d *Dispatcher) publish(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Recovered panic in push publish: %v", rec)
			}
		}()
		fn()
	}()
}

func (d *Dispatcher) marshal(v interface{}) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal push payload: %v", err)
		return nil, false
	}
	return data, true
}
