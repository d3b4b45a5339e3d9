// internal/scheduler/scheduler.go
// The monitoring scheduler: four independent fixed-delay loops (realtime,
// hourly, daily, weekly) walking due monitoring items and dispatching
// checks onto the shared worker pool.
//
// Fixed delay means the next firing is armed only after the previous run
// fully completes, so a slow cycle never stacks overlapping runs of the
// same loop. The loops are fully independent of each other.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigilhq/breachwatch-backend/internal/monitoring"
)

// Item check statuses pushed after each realtime check
const (
	statusChecked = "CHECKED"
	statusError   = "ERROR"
)

// Loop names
const (
	LoopRealtime = "realtime"
	LoopHourly   = "hourly"
	LoopDaily    = "daily"
	LoopWeekly   = "weekly"
)

// ItemSource supplies the populations each loop iterates.
// Satisfied by monitoring.Repository.
type ItemSource interface {
	ItemsNeedingCheck(ctx context.Context, tier monitoring.CheckFrequency, limit int) ([]*monitoring.Item, error)
	UsersWithDueItems(ctx context.Context, tier monitoring.CheckFrequency, page, size int) ([]int64, error)
	DueItemsForUser(ctx context.Context, userID int64, tier monitoring.CheckFrequency) ([]*monitoring.Item, error)
}

// Gate answers whether a user's subscription permits a frequency tier.
// Satisfied by subscription.Service.
type Gate interface {
	PermitsTier(ctx context.Context, userID int64, tier monitoring.CheckFrequency) bool
}

// Checker performs the actual breach lookups. Satisfied by breach.Service.
type Checker interface {
	CheckItem(ctx context.Context, item *monitoring.Item) error
	CheckItemsBulk(ctx context.Context, items []*monitoring.Item) error
}

// Notifier pushes per-item status updates. Satisfied by push.Dispatcher.
type Notifier interface {
	SendStatus(item *monitoring.Item, status, details string) bool
}

// Loop states
const (
	stateUnscheduled int32 = iota
	stateScheduled
	stateRunning
	stateCancelled
)

func stateName(s int32) string {
	switch s {
	case stateScheduled:
		return "scheduled"
	case stateRunning:
		return "running"
	case stateCancelled:
		return "cancelled"
	default:
		return "unscheduled"
	}
}

// loop is one named periodic loop and its cancellable timer handle
type loop struct {
	name     string
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	state    atomic.Int32
}

// Scheduler owns the four monitoring loops and the shared worker pool
type Scheduler struct {
	settings *Settings
	source   ItemSource
	gate     Gate
	checker  Checker
	notifier Notifier
	pool     *Pool

	// lifetime context: cancelled once, on Shutdown. Loop bodies run under
	// it so reconfiguration never interrupts an in-flight run.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	loops   map[string]*loop
	started bool

	perfMu        sync.RWMutex
	lastDuration  map[string]int64 // loop name -> ms, overwritten each cycle
	lastProcessed map[string]int   // loop name -> items, overwritten each cycle
}

// NewScheduler creates a monitoring scheduler
func NewScheduler(settings *Settings, source ItemSource, gate Gate, checker Checker, notifier Notifier, pool *Pool) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		settings:      settings,
		source:        source,
		gate:          gate,
		checker:       checker,
		notifier:      notifier,
		pool:          pool,
		ctx:           ctx,
		cancel:        cancel,
		loops:         make(map[string]*loop),
		lastDuration:  make(map[string]int64),
		lastProcessed: make(map[string]int),
	}
}

// Start schedules all four loops with intervals read from settings.
// Called once when the application is ready.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler already started")
	}
	if s.ctx.Err() != nil {
		return errors.New("scheduler is shut down")
	}

	s.scheduleAllLocked()
	s.started = true

	log.Printf("Monitoring scheduler started: realtime=%v hourly=%v daily=%v weekly=%v",
		s.settings.Duration(KeyRealtimeInterval),
		s.settings.Duration(KeyHourlyInterval),
		s.settings.Duration(KeyDailyInterval),
		s.settings.Duration(KeyWeeklyInterval))
	return nil
}

// Reconfigure cancels every loop (letting in-flight runs finish), re-reads
// intervals from the settings store and schedules the loops again.
func (s *Scheduler) Reconfigure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return errors.New("scheduler not started")
	}
	if s.ctx.Err() != nil {
		return errors.New("scheduler is shut down")
	}

	log.Println("Reconfiguring monitoring scheduler")
	s.cancelAllLocked()

	if err := s.settings.Reload(ctx); err != nil {
		// Stale intervals beat no loops at all; reschedule with the old snapshot
		log.Printf("Reconfigure proceeding with previous settings: %v", err)
	}

	s.scheduleAllLocked()
	log.Println("Monitoring scheduler rescheduled")
	return nil
}

// Shutdown cancels all loops and drains the worker pool within grace.
// In-flight loop bodies abort at their next batch boundary.
func (s *Scheduler) Shutdown(grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Println("Shutting down monitoring scheduler")
	s.cancel()
	s.cancelAllLocked()
	s.started = false

	if err := s.pool.Shutdown(grace); err != nil {
		log.Printf("Scheduler pool did not drain cleanly: %v", err)
	}
}

// scheduleAllLocked spawns all four loops. Caller holds s.mu.
func (s *Scheduler) scheduleAllLocked() {
	s.spawnLocked(LoopRealtime, s.settings.Duration(KeyRealtimeInterval), s.runRealtime)
	s.spawnLocked(LoopHourly, s.settings.Duration(KeyHourlyInterval), s.tierBody(LoopHourly, monitoring.FrequencyHourly))
	s.spawnLocked(LoopDaily, s.settings.Duration(KeyDailyInterval), s.tierBody(LoopDaily, monitoring.FrequencyDaily))
	s.spawnLocked(LoopWeekly, s.settings.Duration(KeyWeeklyInterval), s.tierBody(LoopWeekly, monitoring.FrequencyWeekly))
}

// cancelAllLocked cancels every loop's timer and waits for in-flight runs
// to complete. Caller holds s.mu.
func (s *Scheduler) cancelAllLocked() {
	for _, l := range s.loops {
		l.cancel()
	}
	for name, l := range s.loops {
		<-l.done
		log.Printf("Loop %s cancelled", name)
	}
	s.loops = make(map[string]*loop)
}

func (s *Scheduler) spawnLocked(name string, interval time.Duration, body func(context.Context)) {
	if interval <= 0 {
		log.Printf("Loop %s has non-positive interval %v, leaving unscheduled", name, interval)
		return
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	l := &loop{
		name:     name,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	l.state.Store(stateScheduled)
	s.loops[name] = l

	go s.runLoop(l, loopCtx, body)
}

// runLoop drives one loop with fixed-delay cadence: the timer is re-armed
// only after the body returns.
func (s *Scheduler) runLoop(l *loop, loopCtx context.Context, body func(context.Context)) {
	defer close(l.done)
	defer l.state.Store(stateCancelled)

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-timer.C:
			l.state.Store(stateRunning)
			s.safeRun(l.name, body)
			l.state.Store(stateScheduled)
			timer.Reset(l.interval)
		}
	}
}

// safeRun guards a loop body; one bad cycle must never take the process
// down. The loop just waits for its next firing.
func (s *Scheduler) safeRun(name string, body func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered panic in %s loop, skipping cycle: %v", name, rec)
		}
	}()
	body(s.ctx)
}

// runRealtime is the real-time loop body: fetch due REAL_TIME items for
// permitted users, check them in parallel chunks, and push a status update
// per item as its check completes.
func (s *Scheduler) runRealtime(ctx context.Context) {
	start := time.Now()
	maxChecks := s.settings.Int(KeyRealtimeMaxChecks)
	batchSize := s.settings.Int(KeyRealtimeBatch)
	timeout := s.settings.Duration(KeyRealtimeTimeout)

	items, err := s.source.ItemsNeedingCheck(ctx, monitoring.FrequencyRealTime, maxChecks)
	if err != nil {
		log.Printf("Realtime loop: failed to load due items: %v", err)
		return
	}

	// Permission is per user; cache verdicts so multi-item users cost one lookup
	permitted := make(map[int64]bool)
	eligible := make([]*monitoring.Item, 0, len(items))
	for _, item := range items {
		allowed, seen := permitted[item.UserID]
		if !seen {
			allowed = s.gate.PermitsTier(ctx, item.UserID, monitoring.FrequencyRealTime)
			permitted[item.UserID] = allowed
		}
		if allowed {
			eligible = append(eligible, item)
		}
	}

	if len(eligible) == 0 {
		s.recordRun(LoopRealtime, time.Since(start), 0)
		return
	}

	processed := 0
	for chunkStart := 0; chunkStart < len(eligible); chunkStart += batchSize {
		if ctx.Err() != nil {
			break
		}

		end := chunkStart + batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		chunk := eligible[chunkStart:end]

		futures := make([]*Future, 0, len(chunk))
		for _, item := range chunk {
			item := item
			f, err := s.pool.Submit(ctx, func(taskCtx context.Context) error {
				return s.checkOne(taskCtx, item)
			})
			if err != nil {
				log.Printf("Realtime loop: submit failed for %s: %v", item.Describe(), err)
				continue
			}
			futures = append(futures, f)
		}

		processed += s.awaitBatch(LoopRealtime, futures, timeout)
	}

	s.recordRun(LoopRealtime, time.Since(start), processed)
}

// checkOne runs a single item check and immediately pushes its outcome
func (s *Scheduler) checkOne(ctx context.Context, item *monitoring.Item) error {
	if err := s.checker.CheckItem(ctx, item); err != nil {
		log.Printf("Check failed for %s: %v", item.Describe(), err)
		s.notifier.SendStatus(item, statusError, err.Error())
		return err
	}
	s.notifier.SendStatus(item, statusChecked, "")
	return nil
}

// tierBody builds the shared hourly/daily/weekly loop body: paginate users
// owning due items of the tier, one pool task per user, grouped bulk checks
// inside each task.
func (s *Scheduler) tierBody(name string, tier monitoring.CheckFrequency) func(context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		pageSize := s.settings.Int(KeyTierBatch)
		maxParallel := s.settings.Int(KeyTierParallel)
		timeout := s.settings.Duration(KeyTierTimeout)
		pageCap := s.settings.Int(KeyTierPageCap)
		if maxParallel < 1 {
			maxParallel = 1
		}

		var total atomic.Int64
	pages:
		for page := 0; ; page++ {
			if page >= pageCap {
				// Defensive bound against a runaway data source, not an
				// expected condition
				pageCapTrips.Inc()
				log.Printf("%s loop: hit pagination safety cap of %d pages, ending cycle early", name, pageCap)
				break
			}
			if ctx.Err() != nil {
				break
			}

			users, err := s.source.UsersWithDueItems(ctx, tier, page, pageSize)
			if err != nil {
				log.Printf("%s loop: failed to page users (page %d): %v", name, page, err)
				break
			}
			if len(users) == 0 {
				break
			}

			// Cap in-flight per-user tasks at maxParallel within the page
			for batchStart := 0; batchStart < len(users); batchStart += maxParallel {
				if ctx.Err() != nil {
					break pages
				}

				end := batchStart + maxParallel
				if end > len(users) {
					end = len(users)
				}

				futures := make([]*Future, 0, end-batchStart)
				for _, userID := range users[batchStart:end] {
					userID := userID
					f, err := s.pool.Submit(ctx, func(taskCtx context.Context) error {
						total.Add(int64(s.checkUserItems(taskCtx, name, userID, tier)))
						return nil
					})
					if err != nil {
						log.Printf("%s loop: submit failed for user %d: %v", name, userID, err)
						continue
					}
					futures = append(futures, f)
				}

				s.awaitBatch(name, futures, timeout)
			}
		}

		s.recordRun(name, time.Since(start), int(total.Load()))
	}
}

// checkUserItems processes one user's due items for a tier and returns how
// many were successfully checked. Errors stop here: an unlucky user never
// aborts the page.
func (s *Scheduler) checkUserItems(ctx context.Context, loopName string, userID int64, tier monitoring.CheckFrequency) int {
	if !s.gate.PermitsTier(ctx, userID, tier) {
		return 0
	}

	items, err := s.source.DueItemsForUser(ctx, userID, tier)
	if err != nil {
		log.Printf("%s loop: failed to load due items for user %d: %v", loopName, userID, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	processed := 0
	for _, group := range monitoring.GroupByType(items) {
		if err := s.checker.CheckItemsBulk(ctx, group); err != nil {
			// Degrade to the slower per-item path rather than skip the group
			log.Printf("%s loop: bulk check failed for user %d (%d items), falling back to individual checks: %v",
				loopName, userID, len(group), err)
			for _, item := range group {
				if err := s.checker.CheckItem(ctx, item); err != nil {
					log.Printf("%s loop: check failed for %s: %v", loopName, item.Describe(), err)
					itemErrors.WithLabelValues(loopName).Inc()
					continue
				}
				processed++
			}
			continue
		}
		processed += len(group)
	}

	return processed
}

// awaitBatch waits for a batch of futures under one shared deadline and
// returns how many completed without error. On deadline the remaining
// incomplete futures are cancelled best-effort; tasks already running may
// finish past the deadline, which the next cycle absorbs.
func (s *Scheduler) awaitBatch(loopName string, futures []*Future, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	completed := 0
	timedOut := false

	for _, f := range futures {
		if timedOut {
			f.Cancel()
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			timedOut = true
			f.Cancel()
			continue
		}

		switch err := f.Wait(remaining); {
		case err == nil:
			completed++
		case errors.Is(err, ErrWaitTimeout):
			timedOut = true
			f.Cancel()
		default:
			itemErrors.WithLabelValues(loopName).Inc()
		}
	}

	if timedOut {
		batchTimeouts.WithLabelValues(loopName).Inc()
		log.Printf("%s loop: batch wait exceeded %v, cancelled stragglers", loopName, timeout)
	}

	return completed
}

// recordRun stores per-cycle telemetry: overwritten each cycle, read by the
// admin stats surface.
func (s *Scheduler) recordRun(name string, duration time.Duration, processed int) {
	s.perfMu.Lock()
	s.lastDuration[name] = duration.Milliseconds()
	s.lastProcessed[name] = processed
	s.perfMu.Unlock()

	loopDuration.WithLabelValues(name).Observe(duration.Seconds())
	itemsProcessed.WithLabelValues(name).Add(float64(processed))

	log.Printf("%s loop: cycle finished, %d items processed in %v", name, processed, duration)
}

// LoopStatus describes one loop for the admin surface
type LoopStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	IntervalMs     int64  `json:"interval_ms"`
	LastDurationMs int64  `json:"last_duration_ms"`
	LastProcessed  int    `json:"last_processed"`
}

// Stats is a snapshot of scheduler health
type Stats struct {
	Started bool         `json:"started"`
	Loops   []LoopStatus `json:"loops"`
	Pool    PoolStats    `json:"pool"`
}

// Stats returns the current loop states and performance counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	stats := Stats{Started: s.started, Pool: s.pool.Stats()}
	loops := make([]*loop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.mu.Unlock()

	s.perfMu.RLock()
	defer s.perfMu.RUnlock()

	for _, l := range loops {
		stats.Loops = append(stats.Loops, LoopStatus{
			Name:           l.name,
			State:          stateName(l.state.Load()),
			IntervalMs:     l.interval.Milliseconds(),
			LastDurationMs: s.lastDuration[l.name],
			LastProcessed:  s.lastProcessed[l.name],
		})
	}

	return stats
}

// TriggerRealtime fires one realtime cycle outside the timer, for the admin
// "check now" surface. Runs synchronously on the caller.
func (s *Scheduler) TriggerRealtime() error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler is shut down")
	}
	s.safeRun(LoopRealtime, s.runRealtime)
	return nil
}
