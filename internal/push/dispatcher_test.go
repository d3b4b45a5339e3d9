// internal/push/dispatcher_test.go

package push

import (
	"errors"
	"sync"
	"testing"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
)

// capturePublisher records publishes; optionally fails or panics on demand
type capturePublisher struct {
	mu        sync.Mutex
	userSends []int64
	topics    []string
	bcasts    int
	failAll   bool
	panicAll  bool
}

func (p *capturePublisher) PublishToUser(userID int64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicAll {
		panic("publisher blew up")
	}
	if p.failAll {
		return errors.New("transport down")
	}
	p.userSends = append(p.userSends, userID)
	return nil
}

func (p *capturePublisher) PublishToTopic(userID int64, topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicAll {
		panic("publisher blew up")
	}
	if p.failAll {
		return errors.New("transport down")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) Broadcast(data []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bcasts++
	return 0
}

func (p *capturePublisher) sends() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.userSends)
}

func testItem(userID int64) *monitoring.Item {
	return &monitoring.Item{ID: 42, UserID: userID, Value: "user@example.com", Type: monitoring.TypeEmail}
}

func TestSendStatusOfflineIsNoOp(t *testing.T) {
	registry := NewRegistry()
	pub := &capturePublisher{}
	d := NewDispatcher(registry, pub)

	if d.SendStatus(testItem(5), StatusChecked, "") {
		t.Fatal("send to offline user must report false")
	}
	d.Close()

	if pub.sends() != 0 {
		t.Fatalf("offline send must not reach the publisher, got %d sends", pub.sends())
	}
}

func TestSendStatusOnlineAttemptsDelivery(t *testing.T) {
	registry := NewRegistry()
	registry.Register("sess", 5, "eve")
	pub := &capturePublisher{}
	d := NewDispatcher(registry, pub)

	if !d.SendStatus(testItem(5), StatusChecked, "") {
		t.Fatal("send to online user must report true")
	}
	d.Close()

	if pub.sends() != 1 {
		t.Fatalf("expected 1 delivery attempt, got %d", pub.sends())
	}
}

func TestSendAlertAlsoPublishesTopic(t *testing.T) {
	registry := NewRegistry()
	registry.Register("sess", 5, "eve")
	pub := &capturePublisher{}
	d := NewDispatcher(registry, pub)

	ok := d.SendAlert(5, AlertPayload{
		AlertID:    "a-1",
		ItemID:     42,
		BreachName: "ExampleLeak",
		Severity:   "HIGH",
	})
	if !ok {
		t.Fatal("alert to online user must report true")
	}
	d.Close()

	if pub.sends() != 1 {
		t.Fatalf("expected 1 user delivery, got %d", pub.sends())
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.topics) != 1 || pub.topics[0] != TopicAlerts {
		t.Fatalf("expected alert topic publish, got %v", pub.topics)
	}
}

func TestPublisherErrorNeverPropagates(t *testing.T) {
	registry := NewRegistry()
	registry.Register("sess", 5, "eve")
	pub := &capturePublisher{failAll: true}
	d := NewDispatcher(registry, pub)

	// The attempt happens; the transport error stays inside the dispatcher
	if !d.SendStatus(testItem(5), StatusError, "lookup failed") {
		t.Fatal("online send must report an attempt even when transport fails")
	}
	d.Close()
}

func TestPublisherPanicIsContained(t *testing.T) {
	registry := NewRegistry()
	registry.Register("sess", 5, "eve")
	pub := &capturePublisher{panicAll: true}
	d := NewDispatcher(registry, pub)

	d.SendStatus(testItem(5), StatusChecked, "")
	d.SendSystem(5, "plan_change", "Plan upgraded", "Welcome to Pro", nil)

	// Close waits for the publish goroutines; a leaked panic would fail the test
	d.Close()
}

func TestSendBroadcastCountsOnlineUsers(t *testing.T) {
	registry := NewRegistry()
	registry.Register("a", 1, "alice")
	registry.Register("b1", 2, "bob")
	registry.Register("b2", 2, "bob")
	pub := &capturePublisher{}
	d := NewDispatcher(registry, pub)

	if got := d.SendBroadcast("Maintenance", "Back at noon", "INFO"); got != 2 {
		t.Fatalf("expected 2 users reached, got %d", got)
	}
	d.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.bcasts != 1 {
		t.Fatalf("expected 1 broadcast, got %d", pub.bcasts)
	}
}
