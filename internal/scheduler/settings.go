// internal/scheduler/settings.go
// Hot-reloadable tunables for the monitoring scheduler.
// Values live in a Redis hash written by the admin surface; reads always
// serve from an in-memory snapshot so they never block and never fail.

package scheduler

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Settings keys
const (
	KeyRealtimeInterval  = "realtime.interval_ms"
	KeyHourlyInterval    = "hourly.interval_ms"
	KeyDailyInterval     = "daily.interval_ms"
	KeyWeeklyInterval    = "weekly.interval_ms"
	KeyRealtimeMaxChecks = "realtime.max_checks"
	KeyRealtimeBatch     = "realtime.batch_size"
	KeyRealtimeTimeout   = "realtime.batch_timeout_ms"
	KeyTierBatch         = "tier.batch_size"
	KeyTierParallel      = "tier.max_parallel_threads"
	KeyTierTimeout       = "tier.page_timeout_ms"
	KeyTierPageCap       = "tier.page_cap"
)

// Hard fallbacks used when a key is absent from both the store and the
// startup defaults.
var fallbackDefaults = map[string]int64{
	KeyRealtimeInterval:  5 * 60 * 1000,
	KeyHourlyInterval:    60 * 60 * 1000,
	KeyDailyInterval:     24 * 60 * 60 * 1000,
	KeyWeeklyInterval:    7 * 24 * 60 * 60 * 1000,
	KeyRealtimeMaxChecks: 100,
	KeyRealtimeBatch:     20,
	KeyRealtimeTimeout:   30 * 1000,
	KeyTierBatch:         50,
	KeyTierParallel:      10,
	KeyTierTimeout:       5 * 60 * 1000,
	KeyTierPageCap:       1000,
}

const settingsHashKey = "breachwatch:scheduler:settings"

// Settings provides tunable integers by key with documented fallbacks
type Settings struct {
	rdb *redis.Client // optional, may be nil

	mu       sync.RWMutex
	values   map[string]int64 // snapshot of the store
	defaults map[string]int64 // startup defaults layered over hard fallbacks
}

// NewSettings creates a settings provider. Startup defaults (typically from
// env config) take precedence over the hard fallbacks; store values take
// precedence over both once loaded.
func NewSettings(rdb *redis.Client, defaults map[string]int64) *Settings {
	merged := make(map[string]int64, len(fallbackDefaults))
	for k, v := range fallbackDefaults {
		merged[k] = v
	}
	for k, v := range defaults {
		merged[k] = v
	}

	return &Settings{
		rdb:      rdb,
		values:   make(map[string]int64),
		defaults: merged,
	}
}

// Int64 returns the current value for key, or its fallback default
func (s *Settings) Int64(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	if v, ok := s.defaults[key]; ok {
		return v
	}
	return 0
}

// Int returns the current value for key as an int
func (s *Settings) Int(key string) int {
	return int(s.Int64(key))
}

// Duration interprets a millisecond-valued key as a duration
func (s *Settings) Duration(key string) time.Duration {
	return time.Duration(s.Int64(key)) * time.Millisecond
}

// Set overrides one value in the snapshot (and the store when present)
func (s *Settings) Set(ctx context.Context, key string, value int64) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	if s.rdb == nil {
		return nil
	}
	return s.rdb.HSet(ctx, settingsHashKey, key, value).Err()
}

// Reload refreshes the snapshot from the store. A failed reload keeps the
// previous snapshot; scheduling never stalls on a settings read.
func (s *Settings) Reload(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stored, err := s.rdb.HGetAll(ctx, settingsHashKey).Result()
	if err != nil {
		log.Printf("Settings reload failed, keeping previous values: %v", err)
		return err
	}

	fresh := make(map[string]int64, len(stored))
	for key, raw := range stored {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("Ignoring non-integer setting %s=%q", key, raw)
			continue
		}
		fresh[key] = value
	}

	s.mu.Lock()
	s.values = fresh
	s.mu.Unlock()

	return nil
}

// Snapshot returns a copy of the effective settings for the admin surface
func (s *Settings) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
