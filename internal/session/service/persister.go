package service

import (
	"context"
	"errors"
	"sync"

	"appshell/internal/session/models"
)

var errPersisterClosed = errors.New("persister closed")

// persister writes snapshots from a single goroutine. It holds at most one
// pending snapshot; a newer one replaces it, so only the latest state is
// ever written.
type persister struct {
	write       func(models.SessionState)
	onCoalesced func()

	mu        sync.Mutex
	pending   *models.SessionState
	enqueued  uint64
	attempted uint64
	progress  chan struct{}
	closed    bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

func newPersister(write func(models.SessionState), onCoalesced func()) *persister {
	p := &persister{
		write:       write,
		onCoalesced: onCoalesced,
		progress:    make(chan struct{}),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue never blocks. It reports false once the persister is closed.
func (p *persister) enqueue(state models.SessionState) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if p.pending != nil && p.onCoalesced != nil {
		p.onCoalesced()
	}
	p.pending = &state
	p.enqueued++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *persister) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if p.pending == nil {
			p.mu.Unlock()
			return
		}
		state := *p.pending
		target := p.enqueued
		p.pending = nil
		p.mu.Unlock()

		p.write(state)

		p.mu.Lock()
		p.attempted = target
		close(p.progress)
		p.progress = make(chan struct{})
		p.mu.Unlock()
	}
}

// flush waits until every snapshot enqueued before the call has been
// attempted.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.enqueued
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if p.attempted >= target {
			p.mu.Unlock()
			return nil
		}
		progress := p.progress
		p.mu.Unlock()

		select {
		case <-progress:
		case <-p.stopped:
			p.mu.Lock()
			done := p.attempted >= target
			p.mu.Unlock()
			if done {
				return nil
			}
			return errPersisterClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close drains pending work and stops the goroutine. Safe to call twice.
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		select {
		case <-p.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
