// internal/scheduler/scheduler_test.go

package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
)

// fakeSource serves an in-memory item population
type fakeSource struct {
	mu       sync.Mutex
	realtime []*monitoring.Item
	byUser   map[int64][]*monitoring.Item
	endless  bool // every page returns a user, to exercise the page cap
}

func (f *fakeSource) ItemsNeedingCheck(ctx context.Context, tier monitoring.CheckFrequency, limit int) ([]*monitoring.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.realtime) {
		limit = len(f.realtime)
	}
	return f.realtime[:limit], nil
}

func (f *fakeSource) UsersWithDueItems(ctx context.Context, tier monitoring.CheckFrequency, page, size int) ([]int64, error) {
	if f.endless {
		return []int64{1}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]int64, 0, len(f.byUser))
	for id := range f.byUser {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	start := page * size
	if start >= len(users) {
		return nil, nil
	}
	end := start + size
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], nil
}

func (f *fakeSource) DueItemsForUser(ctx context.Context, userID int64, tier monitoring.CheckFrequency) ([]*monitoring.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUser[userID], nil
}

// fakeGate denies the listed users and permits everyone else
type fakeGate struct {
	mu     sync.Mutex
	denied map[int64]bool
	asked  map[int64]int
}

func (g *fakeGate) PermitsTier(ctx context.Context, userID int64, tier monitoring.CheckFrequency) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.asked == nil {
		g.asked = make(map[int64]int)
	}
	g.asked[userID]++
	return !g.denied[userID]
}

// fakeChecker records checks; bulkErr forces the per-item fallback, block
// makes individual checks hang until their context is cancelled.
type fakeChecker struct {
	mu       sync.Mutex
	single   []int64
	bulk     [][]int64
	failItem map[int64]bool
	bulkErr  error
	block    bool
}

func (c *fakeChecker) CheckItem(ctx context.Context, item *monitoring.Item) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failItem[item.ID] {
		return errors.New("lookup failed")
	}
	c.single = append(c.single, item.ID)
	return nil
}

func (c *fakeChecker) CheckItemsBulk(ctx context.Context, items []*monitoring.Item) error {
	if c.bulkErr != nil {
		return c.bulkErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	c.bulk = append(c.bulk, ids)
	return nil
}

func (c *fakeChecker) singleIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]int64(nil), c.single...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *fakeChecker) bulkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, group := range c.bulk {
		n += len(group)
	}
	return n
}

// fakeNotifier records status pushes
type fakeNotifier struct {
	mu       sync.Mutex
	statuses map[int64]string
}

func (n *fakeNotifier) SendStatus(item *monitoring.Item, status, details string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.statuses == nil {
		n.statuses = make(map[int64]string)
	}
	n.statuses[item.ID] = status
	return true
}

func (n *fakeNotifier) statusOf(itemID int64) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.statuses[itemID]
}

func mkItem(id, userID int64, tier monitoring.CheckFrequency) *monitoring.Item {
	return &monitoring.Item{
		ID:             id,
		UserID:         userID,
		Value:          "target",
		Type:           monitoring.TypeEmail,
		CheckFrequency: tier,
		IsActive:       true,
	}
}

func newTestScheduler(source ItemSource, gate Gate, checker Checker, notifier Notifier, overrides map[string]int64) (*Scheduler, *Pool) {
	pool := NewPool(4, 16, CallerRunsPolicy{})
	settings := NewSettings(nil, overrides)
	return NewScheduler(settings, source, gate, checker, notifier, pool), pool
}

func TestRealtimeCycleChecksPermittedItems(t *testing.T) {
	source := &fakeSource{realtime: []*monitoring.Item{
		mkItem(1, 10, monitoring.FrequencyRealTime),
		mkItem(2, 10, monitoring.FrequencyRealTime),
		mkItem(3, 20, monitoring.FrequencyRealTime),
		mkItem(4, 30, monitoring.FrequencyRealTime),
		mkItem(5, 30, monitoring.FrequencyRealTime),
	}}
	gate := &fakeGate{denied: map[int64]bool{20: true}}
	checker := &fakeChecker{}
	notifier := &fakeNotifier{}

	s, pool := newTestScheduler(source, gate, checker, notifier, map[string]int64{
		KeyRealtimeBatch: 2, // 4 eligible items -> chunks of 2+2
	})
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	if err := s.TriggerRealtime(); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	want := []int64{1, 2, 4, 5}
	if got := checker.singleIDs(); len(got) != len(want) {
		t.Fatalf("expected items %v checked, got %v", want, got)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected items %v checked, got %v", want, got)
			}
		}
	}

	for _, id := range want {
		if notifier.statusOf(id) != statusChecked {
			t.Errorf("item %d should have a CHECKED status, got %q", id, notifier.statusOf(id))
		}
	}
	if notifier.statusOf(3) != "" {
		t.Errorf("denied user's item must get no status push, got %q", notifier.statusOf(3))
	}

	// Permission resolved once per user, not once per item
	gate.mu.Lock()
	defer gate.mu.Unlock()
	if gate.asked[10] != 1 || gate.asked[30] != 1 {
		t.Errorf("expected one gate lookup per user, got %v", gate.asked)
	}

	s.perfMu.RLock()
	processed := s.lastProcessed[LoopRealtime]
	s.perfMu.RUnlock()
	if processed != 4 {
		t.Errorf("expected 4 items recorded, got %d", processed)
	}
}

func TestRealtimeFailedCheckPushesErrorStatus(t *testing.T) {
	source := &fakeSource{realtime: []*monitoring.Item{
		mkItem(1, 10, monitoring.FrequencyRealTime),
		mkItem(2, 10, monitoring.FrequencyRealTime),
	}}
	checker := &fakeChecker{failItem: map[int64]bool{2: true}}
	notifier := &fakeNotifier{}

	s, pool := newTestScheduler(source, &fakeGate{}, checker, notifier, nil)
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	if err := s.TriggerRealtime(); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	if notifier.statusOf(1) != statusChecked {
		t.Errorf("item 1 expected CHECKED, got %q", notifier.statusOf(1))
	}
	if notifier.statusOf(2) != statusError {
		t.Errorf("item 2 expected ERROR, got %q", notifier.statusOf(2))
	}
}

func TestRealtimeBatchTimeoutCancelsStragglers(t *testing.T) {
	source := &fakeSource{realtime: []*monitoring.Item{
		mkItem(1, 10, monitoring.FrequencyRealTime),
		mkItem(2, 10, monitoring.FrequencyRealTime),
	}}
	checker := &fakeChecker{block: true}
	notifier := &fakeNotifier{}

	s, pool := newTestScheduler(source, &fakeGate{}, checker, notifier, map[string]int64{
		KeyRealtimeTimeout: 50, // ms
	})
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	start := time.Now()
	if err := s.TriggerRealtime(); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cycle should end shortly after the batch timeout, took %v", elapsed)
	}

	s.perfMu.RLock()
	processed := s.lastProcessed[LoopRealtime]
	s.perfMu.RUnlock()
	if processed != 0 {
		t.Errorf("stuck items must not count as processed, got %d", processed)
	}
}

func TestTierCycleProcessesAllUsersAcrossPages(t *testing.T) {
	source := &fakeSource{byUser: map[int64][]*monitoring.Item{
		1: {mkItem(11, 1, monitoring.FrequencyHourly), mkItem(12, 1, monitoring.FrequencyHourly)},
		2: {mkItem(21, 2, monitoring.FrequencyHourly)},
		3: {mkItem(31, 3, monitoring.FrequencyHourly)},
		4: {mkItem(41, 4, monitoring.FrequencyHourly)},
		5: {mkItem(51, 5, monitoring.FrequencyHourly)},
	}}
	checker := &fakeChecker{}
	notifier := &fakeNotifier{}

	// 2 users per page, and fewer parallel slots than users on a page
	s, pool := newTestScheduler(source, &fakeGate{}, checker, notifier, map[string]int64{
		KeyTierBatch:    2,
		KeyTierParallel: 1,
	})
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	s.tierBody(LoopHourly, monitoring.FrequencyHourly)(context.Background())

	if got := checker.bulkCount(); got != 6 {
		t.Fatalf("expected all 6 items bulk-checked, got %d", got)
	}

	s.perfMu.RLock()
	processed := s.lastProcessed[LoopHourly]
	s.perfMu.RUnlock()
	if processed != 6 {
		t.Errorf("expected 6 items recorded, got %d", processed)
	}
}

func TestTierSkipsUsersWithoutEntitlement(t *testing.T) {
	source := &fakeSource{byUser: map[int64][]*monitoring.Item{
		1: {mkItem(11, 1, monitoring.FrequencyDaily)},
		2: {mkItem(21, 2, monitoring.FrequencyDaily)},
	}}
	checker := &fakeChecker{}

	s, pool := newTestScheduler(source, &fakeGate{denied: map[int64]bool{2: true}}, checker, &fakeNotifier{}, nil)
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	s.tierBody(LoopDaily, monitoring.FrequencyDaily)(context.Background())

	if got := checker.bulkCount(); got != 1 {
		t.Fatalf("expected only the permitted user's item checked, got %d", got)
	}
}

func TestTierBulkFailureFallsBackToIndividualChecks(t *testing.T) {
	source := &fakeSource{byUser: map[int64][]*monitoring.Item{
		1: {
			mkItem(11, 1, monitoring.FrequencyWeekly),
			mkItem(12, 1, monitoring.FrequencyWeekly),
			mkItem(13, 1, monitoring.FrequencyWeekly),
		},
	}}
	checker := &fakeChecker{bulkErr: errors.New("batch endpoint down")}
	notifier := &fakeNotifier{}

	s, pool := newTestScheduler(source, &fakeGate{}, checker, notifier, nil)
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	s.tierBody(LoopWeekly, monitoring.FrequencyWeekly)(context.Background())

	want := []int64{11, 12, 13}
	got := checker.singleIDs()
	if len(got) != len(want) {
		t.Fatalf("expected per-item fallback for %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected per-item fallback for %v, got %v", want, got)
		}
	}

	s.perfMu.RLock()
	processed := s.lastProcessed[LoopWeekly]
	s.perfMu.RUnlock()
	if processed != 3 {
		t.Errorf("expected 3 items recorded via fallback, got %d", processed)
	}
}

func TestTierPageCapEndsCycle(t *testing.T) {
	source := &fakeSource{
		endless: true,
		byUser:  map[int64][]*monitoring.Item{1: {mkItem(11, 1, monitoring.FrequencyHourly)}},
	}
	checker := &fakeChecker{}

	s, pool := newTestScheduler(source, &fakeGate{}, checker, &fakeNotifier{}, map[string]int64{
		KeyTierPageCap: 3,
	})
	defer pool.Shutdown(time.Second)
	defer s.cancel()

	done := make(chan struct{})
	go func() {
		s.tierBody(LoopHourly, monitoring.FrequencyHourly)(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle must terminate at the page cap")
	}

	if got := checker.bulkCount(); got != 3 {
		t.Fatalf("expected exactly 3 pages worth of checks, got %d", got)
	}
}

func TestStartReconfigureShutdown(t *testing.T) {
	source := &fakeSource{realtime: []*monitoring.Item{mkItem(1, 10, monitoring.FrequencyRealTime)}}
	checker := &fakeChecker{}
	notifier := &fakeNotifier{}

	s, _ := newTestScheduler(source, &fakeGate{}, checker, notifier, map[string]int64{
		KeyRealtimeInterval: 20, // ms, fires quickly
		KeyHourlyInterval:   60 * 60 * 1000,
		KeyDailyInterval:    24 * 60 * 60 * 1000,
		KeyWeeklyInterval:   7 * 24 * 60 * 60 * 1000,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("double start must fail")
	}

	// Wait for at least one realtime firing
	deadline := time.After(3 * time.Second)
	for notifier.statusOf(1) == "" {
		select {
		case <-deadline:
			t.Fatal("realtime loop never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := s.Reconfigure(context.Background()); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}

	stats := s.Stats()
	if !stats.Started {
		t.Fatal("scheduler should report started after reconfigure")
	}
	if len(stats.Loops) != 4 {
		t.Fatalf("expected 4 loops after reconfigure, got %d", len(stats.Loops))
	}

	s.Shutdown(time.Second)
	if s.Stats().Started {
		t.Fatal("scheduler should report stopped after shutdown")
	}
	if err := s.Reconfigure(context.Background()); err == nil {
		t.Fatal("reconfigure after shutdown must fail")
	}
}
