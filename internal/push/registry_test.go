// internal/push/registry_test.go

package push

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegisterAndOnline(t *testing.T) {
	r := NewRegistry()

	if r.IsOnline(1) {
		t.Fatal("user 1 should be offline before registering")
	}

	r.Register("sess-a", 1, "alice")
	if !r.IsOnline(1) {
		t.Fatal("user 1 should be online after registering")
	}

	ids := r.SessionsFor(1)
	if len(ids) != 1 || ids[0] != "sess-a" {
		t.Fatalf("expected [sess-a], got %v", ids)
	}
}

func TestMultiDeviceUserStaysOnline(t *testing.T) {
	r := NewRegistry()

	r.Register("phone", 7, "bob")
	r.Register("laptop", 7, "bob")

	r.Unregister("phone")
	if !r.IsOnline(7) {
		t.Fatal("user should stay online while one session remains")
	}

	r.Unregister("laptop")
	if r.IsOnline(7) {
		t.Fatal("user should be offline after last session goes")
	}
}

func TestUnregisterUnknownSessionIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Register("sess-a", 1, "alice")

	r.Unregister("never-registered")

	if !r.IsOnline(1) {
		t.Fatal("unknown unregister must not disturb live sessions")
	}
}

func TestDuplicateSessionIDOverwrites(t *testing.T) {
	r := NewRegistry()

	r.Register("sess-a", 1, "alice")
	r.Register("sess-a", 2, "carol")

	if r.IsOnline(1) {
		t.Fatal("user 1 should lose the session taken over by user 2")
	}
	if !r.IsOnline(2) {
		t.Fatal("user 2 should be online")
	}

	r.Unregister("sess-a")
	if r.IsOnline(2) {
		t.Fatal("user 2 should be offline after unregister")
	}
}

func TestEvictStale(t *testing.T) {
	r := NewRegistry()

	r.Register("idle", 1, "alice")
	r.Register("fresh", 2, "bob")

	// Backdate the idle session 45 minutes
	value, ok := r.sessions.Load("idle")
	if !ok {
		t.Fatal("session missing")
	}
	value.(*session).lastActivity.Store(time.Now().Add(-45 * time.Minute).UnixNano())

	evicted := r.EvictStale(30 * time.Minute)
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if r.IsOnline(1) {
		t.Fatal("idle user should be offline after eviction")
	}
	if !r.IsOnline(2) {
		t.Fatal("fresh user should survive eviction")
	}

	// A short idle cutoff in the other direction evicts nothing extra
	if evicted := r.EvictStale(time.Hour); evicted != 0 {
		t.Fatalf("expected no further evictions, got %d", evicted)
	}
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	r := NewRegistry()
	r.Register("sess-a", 1, "alice")

	value, _ := r.sessions.Load("sess-a")
	value.(*session).lastActivity.Store(time.Now().Add(-45 * time.Minute).UnixNano())

	r.Touch("sess-a")

	if evicted := r.EvictStale(30 * time.Minute); evicted != 0 {
		t.Fatalf("touched session must not be evicted, got %d evictions", evicted)
	}
}

func TestStats(t *testing.T) {
	r := NewRegistry()

	r.Register("a1", 1, "alice")
	r.Register("a2", 1, "alice")
	r.Register("b1", 2, "bob")
	r.Unregister("b1")

	stats := r.Stats()
	if stats.CurrentConnections != 2 {
		t.Errorf("expected 2 current connections, got %d", stats.CurrentConnections)
	}
	if stats.UniqueUsers != 1 {
		t.Errorf("expected 1 unique user, got %d", stats.UniqueUsers)
	}
	if stats.TotalConnectionsEver != 3 {
		t.Errorf("expected 3 total connections ever, got %d", stats.TotalConnectionsEver)
	}
	if stats.PerUserSessionCounts[1] != 2 {
		t.Errorf("expected 2 sessions for user 1, got %d", stats.PerUserSessionCounts[1])
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	const users = 8
	const sessionsPerUser = 20

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for s := 0; s < sessionsPerUser; s++ {
			wg.Add(1)
			go func(userID int64, n int) {
				defer wg.Done()
				id := fmt.Sprintf("u%d-s%d", userID, n)
				r.Register(id, userID, "user")
				if n%2 == 0 {
					r.Unregister(id)
				}
			}(int64(u), s)
		}
	}
	wg.Wait()

	stats := r.Stats()
	want := users * sessionsPerUser / 2
	if stats.CurrentConnections != want {
		t.Errorf("expected %d live sessions, got %d", want, stats.CurrentConnections)
	}
	for u := 0; u < users; u++ {
		if !r.IsOnline(int64(u)) {
			t.Errorf("user %d should be online", u)
		}
	}
}

func TestOnlineUsers(t *testing.T) {
	r := NewRegistry()
	r.Register("a", 1, "alice")
	r.Register("b", 2, "bob")
	r.Register("c", 3, "carol")
	r.Unregister("b")

	online := r.OnlineUsers()
	if len(online) != 2 {
		t.Fatalf("expected 2 online users, got %v", online)
	}
	seen := map[int64]bool{}
	for _, id := range online {
		seen[id] = true
	}
	if !seen[1] || !seen[3] || seen[2] {
		t.Fatalf("unexpected online set %v", online)
	}
}
