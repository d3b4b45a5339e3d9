// internal/scheduler/settings_test.go

package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestSettingsFallbackDefaults(t *testing.T) {
	s := NewSettings(nil, nil)

	if got := s.Int(KeyRealtimeMaxChecks); got != 100 {
		t.Errorf("expected max checks fallback 100, got %d", got)
	}
	if got := s.Int(KeyTierBatch); got != 50 {
		t.Errorf("expected tier batch fallback 50, got %d", got)
	}
	if got := s.Duration(KeyRealtimeTimeout); got != 30*time.Second {
		t.Errorf("expected realtime timeout fallback 30s, got %v", got)
	}
	if got := s.Duration(KeyTierTimeout); got != 5*time.Minute {
		t.Errorf("expected tier timeout fallback 5m, got %v", got)
	}
	if got := s.Int64("unknown.key"); got != 0 {
		t.Errorf("unknown key should read 0, got %d", got)
	}
}

func TestSettingsStartupDefaultsOverrideFallbacks(t *testing.T) {
	s := NewSettings(nil, map[string]int64{
		KeyRealtimeInterval: 1000,
		KeyTierParallel:     3,
	})

	if got := s.Duration(KeyRealtimeInterval); got != time.Second {
		t.Errorf("expected 1s realtime interval, got %v", got)
	}
	if got := s.Int(KeyTierParallel); got != 3 {
		t.Errorf("expected 3 parallel threads, got %d", got)
	}
	// Untouched keys keep their hard fallbacks
	if got := s.Int(KeyRealtimeBatch); got != 20 {
		t.Errorf("expected batch fallback 20, got %d", got)
	}
}

func TestSettingsSetOverridesSnapshot(t *testing.T) {
	s := NewSettings(nil, nil)

	if err := s.Set(context.Background(), KeyTierPageCap, 7); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := s.Int(KeyTierPageCap); got != 7 {
		t.Errorf("expected page cap 7, got %d", got)
	}
}

func TestSettingsReloadWithoutStoreIsNoOp(t *testing.T) {
	s := NewSettings(nil, nil)
	s.Set(context.Background(), KeyTierBatch, 9)

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload without store must not fail: %v", err)
	}
	if got := s.Int(KeyTierBatch); got != 9 {
		t.Errorf("reload without store must keep values, got %d", got)
	}
}

func TestSettingsSnapshotMergesDefaultsAndValues(t *testing.T) {
	s := NewSettings(nil, map[string]int64{KeyHourlyInterval: 42})
	s.Set(context.Background(), KeyTierParallel, 2)

	snap := s.Snapshot()
	if snap[KeyHourlyInterval] != 42 {
		t.Errorf("expected startup default in snapshot, got %d", snap[KeyHourlyInterval])
	}
	if snap[KeyTierParallel] != 2 {
		t.Errorf("expected set value in snapshot, got %d", snap[KeyTierParallel])
	}
	if snap[KeyWeeklyInterval] != 7*24*60*60*1000 {
		t.Errorf("expected weekly fallback in snapshot, got %d", snap[KeyWeeklyInterval])
	}
}
