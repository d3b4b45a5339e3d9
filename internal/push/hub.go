// internal/push/hub.go
// Websocket transport: maps registry sessions to live connections and
// implements the Publisher interface consumed by the dispatcher.

package push

import (
	"encoding/json"
	"log"
	"sync"
)

// envelope wraps outbound frames with their destination so dashboard
// clients can demultiplex per-user and topic traffic on one socket.
type envelope struct {
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

// Hub owns the live websocket connections
type Hub struct {
	registry *Registry

	mu      sync.RWMutex
	clients map[string]*Client // sessionID -> client
}

// NewHub creates a new websocket hub
func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry: registry,
		clients:  make(map[string]*Client),
	}
}

// attach binds a client connection to its session id
func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	if old, exists := h.clients[c.sessionID]; exists {
		old.close()
	}
	h.clients[c.sessionID] = c
	h.mu.Unlock()

	h.registry.Register(c.sessionID, c.userID, c.username)
}

// detach removes a client connection and its registry session
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	if current, exists := h.clients[c.sessionID]; exists && current == c {
		delete(h.clients, c.sessionID)
	}
	h.mu.Unlock()

	h.registry.Unregister(c.sessionID)
}

// PublishToUser delivers data to every session the user holds
func (h *Hub) PublishToUser(userID int64, data []byte) error {
	return h.sendTo(h.registry.SessionsFor(userID), "/queue/user", data)
}

// PublishToTopic delivers data to the user's sessions on a topic destination
func (h *Hub) PublishToTopic(userID int64, topic string, data []byte) error {
	return h.sendTo(h.registry.SessionsFor(userID), "/topic/"+topic, data)
}

// Broadcast delivers data to every connected client and returns the number
// of sessions it was handed to.
func (h *Hub) Broadcast(data []byte) int {
	frame, err := json.Marshal(envelope{Destination: "/topic/broadcast", Payload: data})
	if err != nil {
		log.Printf("Failed to frame broadcast: %v", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients {
		if c.trySend(frame) {
			sent++
		}
	}
	return sent
}

// ActiveConnections returns the number of attached clients
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll tears down every connection, e.g. on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) sendTo(sessionIDs []string, destination string, data []byte) error {
	if len(sessionIDs) == 0 {
		return nil
	}

	frame, err := json.Marshal(envelope{Destination: destination, Payload: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range sessionIDs {
		if c, exists := h.clients[id]; exists {
			if !c.trySend(frame) {
				// Slow consumer: drop the connection rather than block
				go c.close()
			}
		}
	}
	return nil
}
