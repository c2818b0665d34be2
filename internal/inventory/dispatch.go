package inventory

import (
	"context"
	"errors"
	"sync"
)

// DispatchPool is the bounded worker pool described in SPEC_FULL.md §4.E. A
// fixed number of worker goroutines drain a shared, unbounded task queue.
//
// A worker that dispatches more work — because the resource it is crawling
// turned out to have its own dispatchable descendants (folders nest; a
// folder and a project are both dispatchable) — enqueues that work and
// returns immediately, without waiting for it to finish. An earlier version
// held a fixed-size semaphore token for a dispatched subtree's entire
// recursive lifetime; once every worker was simultaneously blocked trying to
// dispatch its own children, no token was ever released and the pool hung
// forever. Decoupling "a worker is busy" from "this subtree is done" is what
// avoids that: the task queue here has no capacity limit, so Dispatch never
// blocks, and a worker only ever waits on the queue being empty, never on a
// specific task's result.
type DispatchPool struct {
	ctx context.Context

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func(ctx context.Context) error
	closed bool

	wg sync.WaitGroup

	errMu sync.Mutex
	errs  []error
}

// NewDispatchPool starts concurrency worker goroutines draining a shared
// task queue. ctx is the context passed to every dispatched callback.
func NewDispatchPool(ctx context.Context, concurrency int) *DispatchPool {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &DispatchPool{ctx: ctx}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < concurrency; i++ {
		go p.worker()
	}
	return p
}

func (p *DispatchPool) worker() {
	for {
		fn, ok := p.pop()
		if !ok {
			return
		}
		if err := fn(p.ctx); err != nil {
			p.errMu.Lock()
			p.errs = append(p.errs, err)
			p.errMu.Unlock()
		}
		p.wg.Done()
	}
}

// pop blocks until a task is available or the pool has been closed with an
// empty queue, in which case the worker exits.
func (p *DispatchPool) pop() (func(ctx context.Context) error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	fn := p.queue[0]
	p.queue = p.queue[1:]
	return fn, true
}

// Dispatch enqueues fn for later execution on a worker goroutine. It never
// blocks on fn's completion or on queue capacity — the queue is an
// unbounded slice — so a worker calling Dispatch from inside a running task
// always returns immediately rather than waiting on its own descendants.
func (p *DispatchPool) Dispatch(fn func(ctx context.Context) error) {
	p.wg.Add(1)
	p.mu.Lock()
	p.queue = append(p.queue, fn)
	p.mu.Unlock()
	p.cond.Signal()
}

// Wait blocks until every dispatched task, including tasks dispatched by
// other tasks while they ran, has completed. It then stops the worker
// goroutines and returns every accumulated error (nil if none). The crawl is
// not considered complete until this returns, per SPEC_FULL.md §4.D
// "Terminal states".
func (p *DispatchPool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}
