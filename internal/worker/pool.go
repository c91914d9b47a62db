package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

)

const (
	DefaultWorkers   = 10
	DefaultQueueSize = 100
)

// Pool runs tasks on a fixed set of goroutines fed by a bounded queue.
type Pool struct {
	runner Runner
	tasks  chan Task

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(r Runner, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}
	p := &Pool{
		runner: r,
		tasks:  make(chan Task, queueSize),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	slog.Info("worker pool started", "workers", workers, "queue_size", queueSize)
	return p
}

// Submit enqueues t and returns immediately. It never blocks: a saturated
// queue yields ErrQueueFull and the event is left to upstream redelivery.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(id, t)
	}
}

func (p *Pool) run(id int, t Task) {
	ctx := t.context(context.Background())
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "task panicked", "worker", id, "route", t.Route, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	p.runner.Run(ctx, t)
}

// Shutdown stops accepting tasks, drains the queue and waits for workers or
// for ctx to expire, whichever is first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
