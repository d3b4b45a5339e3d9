// internal/push/janitor.go
// Periodic eviction of idle sessions, outside the main scheduling loops

package push

import (
	"context"
	"log"
	"time"
)

// Janitor evicts stale sessions on a low-frequency timer
type Janitor struct {
	registry *Registry
	interval time.Duration
	maxIdle  time.Duration
	stopCh   chan struct{}
}

// NewJanitor creates a new session janitor
func NewJanitor(registry *Registry, interval, maxIdle time.Duration) *Janitor {
	if interval == 0 {
		interval = time.Hour
	}
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	return &Janitor{
		registry: registry,
		interval: interval,
		maxIdle:  maxIdle,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the janitor until Stop is called or the context is cancelled
func (j *Janitor) Start(ctx context.Context) {
	log.Printf("Starting session janitor with interval %v, max idle %v", j.interval, j.maxIdle)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := j.registry.EvictStale(j.maxIdle); evicted > 0 {
				log.Printf("Session janitor evicted %d stale sessions", evicted)
			}
		case <-j.stopCh:
			log.Println("Stopping session janitor")
			return
		case <-ctx.Done():
			log.Println("Context cancelled, stopping session janitor")
			return
		}
	}
}

// Stop stops the janitor
func (j *Janitor) Stop() {
	close(j.stopCh)
}
