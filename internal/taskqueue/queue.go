// Package taskqueue provides a bounded-fan-out executor for independent
// asynchronous units of work. Submit never blocks the caller; Drain waits
// for every submitted unit to settle, including units submitted while the
// drain is already in progress, which is the normal case here since
// visiting a node's children submits more work.
package taskqueue

import (
	"context"
	"sync"
)

// Handle is the future returned by Submit.
type Handle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the unit settles and returns its error, if any. A
// failed unit's error is observable here but never stops other queued
// units from running.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Queue executes submitted work with bounded concurrency.
type Queue struct {
	sem chan struct{}

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
}

// New creates a queue running at most maxConcurrent units at once.
func New(maxConcurrent int) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	q := &Queue{sem: make(chan struct{}, maxConcurrent)}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Submit schedules fn for execution and returns its handle immediately.
func (q *Queue) Submit(ctx context.Context, fn func(context.Context) error) *Handle {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	h := &Handle{done: make(chan struct{})}
	go func() {
		q.sem <- struct{}{}
		h.err = fn(ctx)
		<-q.sem

		close(h.done)

		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}()
	return h
}

// Drain blocks until all submitted work has settled. Work submitted from
// inside a running unit is covered: its pending count is raised before the
// submitting unit settles, so the count cannot reach zero early.
func (q *Queue) Drain(ctx context.Context) error {
	settled := make(chan struct{})
	go func() {
		q.mu.Lock()
		for q.pending > 0 {
			q.idle.Wait()
		}
		q.mu.Unlock()
		close(settled)
	}()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
