// internal/push/registry.go
// In-memory registry of active push-channel sessions.
// A user may hold several sessions at once (multi-device); the user is
// online while at least one session is live.

package push

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// session is the mutable in-memory record behind a SessionInfo snapshot
type session struct {
	sessionID    string
	userID       int64
	username     string
	connectedAt  time.Time
	lastActivity atomic.Int64 // unix nanos
}

func (s *session) snapshot() SessionInfo {
	return SessionInfo{
		SessionID:    s.sessionID,
		UserID:       s.userID,
		Username:     s.username,
		ConnectedAt:  s.connectedAt,
		LastActivity: time.Unix(0, s.lastActivity.Load()),
	}
}

// userSessions is the per-user session set. Each set carries its own lock so
// connects for unrelated users never serialize on a registry-wide mutex.
type userSessions struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	removed bool // set when the entry has been deleted from the user map
}

// Registry tracks which users currently hold an open push channel
type Registry struct {
	sessions  sync.Map // sessionID -> *session
	users     sync.Map // userID -> *userSessions
	totalEver atomic.Int64
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records a new session for the user. Idempotent: a duplicate
// session id overwrites the previous record.
func (r *Registry) Register(sessionID string, userID int64, username string) {
	now := time.Now()
	s := &session{
		sessionID:   sessionID,
		userID:      userID,
		username:    username,
		connectedAt: now,
	}
	s.lastActivity.Store(now.UnixNano())

	if prev, loaded := r.sessions.Swap(sessionID, s); loaded {
		// Same session id reconnecting, possibly as a different user
		old := prev.(*session)
		if old.userID != userID {
			r.removeFromUser(old.userID, sessionID)
		}
	}

	r.addToUser(userID, sessionID)
	r.totalEver.Add(1)

	log.Printf("Session %s registered for user %d (%s)", sessionID, userID, username)
}

// Unregister removes a session. The user entry is dropped when its last
// session goes. Unknown session ids are a logged no-op.
func (r *Registry) Unregister(sessionID string) {
	value, loaded := r.sessions.LoadAndDelete(sessionID)
	if !loaded {
		log.Printf("Unregister for unknown session %s", sessionID)
		return
	}

	s := value.(*session)
	r.removeFromUser(s.userID, sessionID)

	log.Printf("Session %s unregistered for user %d", sessionID, s.userID)
}

// Touch refreshes a session's activity timestamp
func (r *Registry) Touch(sessionID string) {
	if value, ok := r.sessions.Load(sessionID); ok {
		value.(*session).lastActivity.Store(time.Now().UnixNano())
	}
}

// IsOnline reports whether the user has at least one live session
func (r *Registry) IsOnline(userID int64) bool {
	value, ok := r.users.Load(userID)
	if !ok {
		return false
	}

	entry := value.(*userSessions)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return !entry.removed && len(entry.ids) > 0
}

// SessionsFor returns a snapshot copy of the user's session ids
func (r *Registry) SessionsFor(userID int64) []string {
	value, ok := r.users.Load(userID)
	if !ok {
		return nil
	}

	entry := value.(*userSessions)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	ids := make([]string, 0, len(entry.ids))
	for id := range entry.ids {
		ids = append(ids, id)
	}
	return ids
}

// OnlineUsers returns a snapshot of all user ids with at least one session
func (r *Registry) OnlineUsers() []int64 {
	var userIDs []int64
	r.users.Range(func(key, value interface{}) bool {
		entry := value.(*userSessions)
		entry.mu.Lock()
		live := !entry.removed && len(entry.ids) > 0
		entry.mu.Unlock()
		if live {
			userIDs = append(userIDs, key.(int64))
		}
		return true
	})
	return userIDs
}

// EvictStale removes sessions with no activity since now-maxIdle and
// returns the number evicted.
func (r *Registry) EvictStale(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).UnixNano()

	var stale []string
	r.sessions.Range(func(key, value interface{}) bool {
		if value.(*session).lastActivity.Load() < cutoff {
			stale = append(stale, key.(string))
		}
		return true
	})

	evicted := 0
	for _, sessionID := range stale {
		value, loaded := r.sessions.LoadAndDelete(sessionID)
		if !loaded {
			continue // disconnected while we were scanning
		}
		s := value.(*session)
		r.removeFromUser(s.userID, sessionID)
		evicted++
		log.Printf("Evicted stale session %s (user %d, idle since %v)",
			sessionID, s.userID, time.Unix(0, s.lastActivity.Load()))
	}

	return evicted
}

// Stats returns an aggregate snapshot of the registry
func (r *Registry) Stats() RegistryStats {
	stats := RegistryStats{
		TotalConnectionsEver: r.totalEver.Load(),
		PerUserSessionCounts: make(map[int64]int),
	}

	r.users.Range(func(key, value interface{}) bool {
		entry := value.(*userSessions)
		entry.mu.Lock()
		n := len(entry.ids)
		removed := entry.removed
		entry.mu.Unlock()
		if !removed && n > 0 {
			stats.PerUserSessionCounts[key.(int64)] = n
			stats.CurrentConnections += n
			stats.UniqueUsers++
		}
		return true
	})

	return stats
}

// Sessions returns snapshots of every live session
func (r *Registry) Sessions() []SessionInfo {
	var infos []SessionInfo
	r.sessions.Range(func(_, value interface{}) bool {
		infos = append(infos, value.(*session).snapshot())
		return true
	})
	return infos
}

// addToUser inserts the session id into the user's set, retrying if the
// entry was concurrently removed from the user map.
func (r *Registry) addToUser(userID int64, sessionID string) {
	for {
		value, _ := r.users.LoadOrStore(userID, &userSessions{ids: make(map[string]struct{})})
		entry := value.(*userSessions)

		entry.mu.Lock()
		if entry.removed {
			entry.mu.Unlock()
			continue
		}
		entry.ids[sessionID] = struct{}{}
		entry.mu.Unlock()
		return
	}
}

func (r *Registry) removeFromUser(userID int64, sessionID string) {
	value, ok := r.users.Load(userID)
	if !ok {
		return
	}
	entry := value.(*userSessions)

	entry.mu.Lock()
	delete(entry.ids, sessionID)
	if len(entry.ids) == 0 {
		entry.removed = true
		r.users.Delete(userID)
	}
	entry.mu.Unlock()
}
