package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

var ErrBacklogFull = errors.New("ingestion backlog full")

// PoolDispatcher runs jobs on a bounded in-process goroutine pool. Jobs wait
// in a bounded backlog while every worker is busy and are detached from the
// request context.
type PoolDispatcher struct {
	pool    *ants.Pool
	process func(ctx context.Context, job Job) error
	backlog chan func()
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPoolDispatcher starts size workers fed from a backlog of up to
// backlog queued jobs. Non-positive values fall back to defaults.
func NewPoolDispatcher(size, backlog int, c *Coordinator) (*PoolDispatcher, error) {
	if size <= 0 {
		size = 4
	}
	if backlog <= 0 {
		backlog = 64
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		slog.Error("ingestion job panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}
	d := &PoolDispatcher{
		pool:    pool,
		process: c.Process,
		backlog: make(chan func(), backlog),
		done:    make(chan struct{}),
	}
	go d.feed()
	return d, nil
}

// feed hands queued jobs to the pool, blocking while all workers are busy.
func (d *PoolDispatcher) feed() {
	defer close(d.done)
	for task := range d.backlog {
		if err := d.pool.Submit(task); err != nil {
			slog.Error("submit ingestion job", "error", err)
		}
	}
}

// Dispatch queues the job. It fails only when the backlog is full or the
// dispatcher is closed.
func (d *PoolDispatcher) Dispatch(ctx context.Context, job Job) error {
	bg := context.WithoutCancel(ctx)
	task := func() { _ = d.process(bg, job) }

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("dispatch %s: %w", job.FileID, ants.ErrPoolClosed)
	}
	select {
	case d.backlog <- task:
		return nil
	default:
		return fmt.Errorf("dispatch %s: %w (%d queued)", job.FileID, ErrBacklogFull, cap(d.backlog))
	}
}

// Close stops accepting jobs and waits up to timeout for queued and running
// ones to finish.
func (d *PoolDispatcher) Close(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.backlog)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-time.After(timeout):
		slog.Warn("ingestion backlog not drained", "queued", len(d.backlog), "running", d.pool.Running())
	}

	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return d.pool.ReleaseTimeout(remaining)
}
