// Package pool implements a fixed-size worker pool with a shared FIFO queue.
//
// A Pool moves through running → draining → stopped. Workers block on a
// condition variable while the queue is empty, take one task at a time under
// the pool mutex and run it with the mutex released.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// Config controls pool construction.
type Config struct {
	Workers       int    // <= 0 means runtime.NumCPU()
	MaxQueued     int    // <= 0 means unbounded
	LockOSThreads bool   // pin each worker to its own OS thread and name it
	Name          string // thread name prefix, defaults to "frameloop"
}

type poolState int32

const (
	stateRunning poolState = iota
	stateDraining
	stateStopped
)

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Workers   int
	Queued    int
	Active    int
	Submitted int64
	Completed int64
	Failed    int64
	Abandoned int64
}

// Pool owns a fixed set of worker goroutines.
type Pool struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	pending *sync.Cond // signaled by Submit and Stop
	idle    *sync.Cond // broadcast when the queue is empty and nothing runs
	queue   *queue.Queue
	active  int
	state   poolState
	quit    bool
	workers sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	abandoned atomic.Int64
}

// New starts cfg.Workers workers and returns a running pool.
func New(cfg Config, log *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Name == "" {
		cfg.Name = "frameloop"
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pool{
		cfg:   cfg,
		log:   log,
		queue: queue.New(),
	}
	p.pending = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	for i := 0; i < cfg.Workers; i++ {
		p.workers.Add(1)
		go p.worker(i)
	}
	log.Debug("thread pool started",
		zap.Int("workers", cfg.Workers),
		zap.Int("max_queued", cfg.MaxQueued),
		zap.Bool("lock_os_threads", cfg.LockOSThreads))
	return p
}

// Workers returns the fixed worker count.
func (p *Pool) Workers() int { return p.cfg.Workers }

// Submit enqueues work and wakes one idle worker. It never runs the work on
// the calling goroutine.
func (p *Pool) Submit(work Work) (*Task, error) {
	if work == nil {
		return nil, ErrNilWork
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateRunning {
		return nil, ErrPoolStopped
	}
	if p.cfg.MaxQueued > 0 && p.queue.Length() >= p.cfg.MaxQueued {
		return nil, ErrQueueFull
	}

	t := newTask(work)
	p.queue.Add(t)
	p.submitted.Add(1)
	p.pending.Signal()
	return t, nil
}

// Wait blocks until the queue is empty and no task is executing. Submissions
// racing with Wait may or may not be covered by it; they still run.
func (p *Pool) Wait() {
	p.mu.Lock()
	p.waitIdleLocked()
	p.mu.Unlock()
}

func (p *Pool) waitIdleLocked() {
	for p.queue.Length() > 0 || p.active > 0 {
		p.idle.Wait()
	}
}

// Stop rejects new work, drains the queue, then joins every worker.
//
// If ctx ends before the queue drains, tasks still queued are abandoned
// (their Wait returns ErrTaskAbandoned), running tasks are allowed to finish
// and the context error is returned. Calling Stop again returns
// ErrPoolStopped.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != stateRunning {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.state = stateDraining
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("stop thread pool: %w", ctx.Err())
	}

	p.mu.Lock()
	p.quit = true
	var dropped []*Task
	for p.queue.Length() > 0 {
		dropped = append(dropped, p.queue.Remove().(*Task))
	}
	p.pending.Broadcast()
	p.idle.Broadcast()
	p.mu.Unlock()

	for _, t := range dropped {
		t.abandon()
		p.abandoned.Add(1)
	}

	p.workers.Wait()

	p.mu.Lock()
	p.state = stateStopped
	p.mu.Unlock()

	p.log.Debug("thread pool stopped",
		zap.Int64("completed", p.completed.Load()),
		zap.Int("abandoned", len(dropped)))
	return err
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queued, active := p.queue.Length(), p.active
	p.mu.Unlock()
	return Stats{
		Workers:   p.cfg.Workers,
		Queued:    queued,
		Active:    active,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Abandoned: p.abandoned.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()

	if p.cfg.LockOSThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := nameThread(fmt.Sprintf("%s-w%d", p.cfg.Name, id)); err != nil {
			p.log.Debug("name worker thread", zap.Int("worker", id), zap.Error(err))
		}
	}

	for {
		p.mu.Lock()
		for !p.quit && p.queue.Length() == 0 {
			p.pending.Wait()
		}
		if p.queue.Length() == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue.Remove().(*Task)
		p.active++
		p.mu.Unlock()

		if err := t.run(); err != nil {
			p.failed.Add(1)
			p.log.Warn("task failed", zap.Int("worker", id), zap.Error(err))
		}
		p.completed.Add(1)

		p.mu.Lock()
		p.active--
		if p.active == 0 && p.queue.Length() == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}
