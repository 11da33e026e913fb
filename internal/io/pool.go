package io

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool is a long running set of consumers. A failed unit does not stop its consumer, the failure is
// delivered to the unit's Done callback.
type Pool struct {
	work   chan *WorkUnit
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
	mu     sync.RWMutex
	closed bool
}

func NewPool(ctx context.Context, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		work:   make(chan *WorkUnit, queueSize),
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go NewStandardConsumer(ctx, false).Consume(p.work, nil, &p.wg)
	}
	return p
}

// Submit queues a unit, blocking while the queue is full.
func (p *Pool) Submit(unit *WorkUnit) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.active.Add(1)
	done := unit.Done
	wrapped := *unit
	wrapped.Done = func(err error) {
		p.active.Add(-1)
		if done != nil {
			done(err)
		}
	}
	p.work <- &wrapped
	return nil
}

// Active is the number of submitted units that have not completed yet.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Close cancels running units, fails the queued ones and waits for the consumers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cancel()
	close(p.work)
	p.mu.Unlock()

	p.wg.Wait()
}
