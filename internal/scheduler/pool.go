// internal/scheduler/pool.go
// Shared bounded worker pool for scheduler tasks.
// Saturation is handled by an explicit rejection policy; the default
// caller-runs policy executes the task on the submitting goroutine, which
// stalls the scheduling loop instead of dropping work.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrWaitTimeout is returned by Future.Wait when the deadline passes first
var ErrWaitTimeout = errors.New("timed out waiting for task")

// ErrPoolClosed is returned for submissions after shutdown began
var ErrPoolClosed = errors.New("worker pool is shut down")

// Task is one unit of work dispatched to the pool
type Task func(ctx context.Context) error

// Future tracks a submitted task
type Future struct {
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

// run executes the task at most once; a cancelled future that reaches a
// worker resolves immediately without running the task.
func (f *Future) run() {
	f.once.Do(func() {
		defer close(f.done)
		defer func() {
			if rec := recover(); rec != nil {
				f.err = fmt.Errorf("task panicked: %v", rec)
			}
		}()

		if err := f.ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.err = f.task(f.ctx)
	})
}

// Cancel requests best-effort cancellation. Queued tasks resolve without
// running; already-running tasks see their context cancelled.
func (f *Future) Cancel() {
	f.cancel()
}

// Wait blocks until the task resolves or the timeout passes
func (f *Future) Wait(timeout time.Duration) error {
	select {
	case <-f.done:
		return f.err
	case <-time.After(timeout):
		return ErrWaitTimeout
	}
}

// Done returns the future's completion channel
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task result; only meaningful once Done is closed
func (f *Future) Err() error {
	return f.err
}

// RejectionPolicy decides what happens to a task the queue cannot take
type RejectionPolicy interface {
	Reject(f *Future)
}

// CallerRunsPolicy executes rejected tasks inline on the submitting
// goroutine. Deliberate backpressure: a saturated pool slows the producer
// rather than losing work.
type CallerRunsPolicy struct{}

func (CallerRunsPolicy) Reject(f *Future) {
	f.run()
}

// Pool is a bounded worker pool with a bounded task queue
type Pool struct {
	queue  chan *Future
	policy RejectionPolicy
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	submitted atomic.Int64
	inline    atomic.Int64
	completed atomic.Int64
}

// NewPool creates a pool with the given worker and queue sizes
func NewPool(workers, queueSize int, policy RejectionPolicy) *Pool {
	if workers < 1 {
		workers = 1
	}
	if policy == nil {
		policy = CallerRunsPolicy{}
	}

	p := &Pool{
		queue:  make(chan *Future, queueSize),
		policy: policy,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for f := range p.queue {
		f.run()
		p.completed.Add(1)
	}
}

// Submit hands a task to the pool. When the queue is full the rejection
// policy decides; with caller-runs the submitting goroutine blocks on the
// task itself. Returns ErrPoolClosed after shutdown began.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	taskCtx, cancel := context.WithCancel(ctx)
	f := &Future{
		task:   task,
		ctx:    taskCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return nil, ErrPoolClosed
	}

	select {
	case p.queue <- f:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		p.inline.Add(1)
		p.policy.Reject(f)
	}

	p.submitted.Add(1)
	return f, nil
}

// Shutdown stops intake and waits up to grace for in-flight tasks. Past the
// deadline remaining work is abandoned (its contexts are not cancelled here;
// callers own per-task cancellation).
func (p *Pool) Shutdown(grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool drained cleanly")
		return nil
	case <-time.After(grace):
		log.Printf("Worker pool shutdown grace of %v exceeded, abandoning stragglers", grace)
		return fmt.Errorf("pool shutdown exceeded %v grace period", grace)
	}
}

// PoolStats is a point-in-time view of pool activity
type PoolStats struct {
	Submitted  int64 `json:"submitted"`
	Completed  int64 `json:"completed"`
	InlineRuns int64 `json:"inline_runs"`
	QueueDepth int   `json:"queue_depth"`
}

// Stats returns current pool counters
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		InlineRuns: p.inline.Load(),
		QueueDepth: len(p.queue),
	}
}
