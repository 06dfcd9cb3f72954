// Package ops tracks operational audit events: fire-and-forget, sampled,
// buffered, and guarded by a circuit breaker so a failing sink never slows
// down the caller.
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "appshell/pkg/platform/audit"
)

// Store persists ops events.
type Store interface {
	Append(ctx context.Context, event audit.OpsEvent) error
}

const defaultBufferSize = 256

// Tracker buffers ops events and writes them from a single worker goroutine.
type Tracker struct {
	store   Store
	sampler *Sampler
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	bufferSize int
	events     chan audit.OpsEvent

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSampler replaces the default keep-everything sampler.
func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		if s != nil {
			t.sampler = s
		}
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) {
		if cb != nil {
			t.breaker = cb
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBufferSize sets how many events may wait for the worker.
func WithBufferSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.bufferSize = n
		}
	}
}

// NewTracker starts a tracker writing to store. Call Close to drain it.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:      store,
		sampler:    NewSampler(1),
		breaker:    NewCircuitBreaker(5, time.Minute),
		logger:     slog.Default(),
		now:        time.Now,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.events = make(chan audit.OpsEvent, t.bufferSize)

	t.wg.Add(1)
	go t.run()
	return t
}

// Track enqueues an event. It never blocks: sampled-out events, events
// arriving while the breaker is open, and events that do not fit in the
// buffer are dropped and counted.
func (t *Tracker) Track(_ context.Context, event audit.OpsEvent) {
	if t == nil {
		return
	}
	if !t.sampler.ShouldSample(event.Action) {
		t.metrics.incSampled()
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if event.ChangeID == "" {
		event.ChangeID = uuid.NewString()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.events <- event:
	default:
		t.metrics.incBufferDropped()
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (t *Tracker) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.events)
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for event := range t.events {
		t.persist(event)
	}
}

func (t *Tracker) persist(event audit.OpsEvent) {
	if !t.breaker.Allow() {
		t.metrics.incCircuitBreakerDropped()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := t.store.Append(ctx, event); err != nil {
		t.metrics.incPersistFailures()
		open := t.breaker.RecordFailure()
		t.metrics.setCircuitBreakerState(open)
		t.logger.Warn("ops audit event dropped",
			"action", event.Action,
			"error", err,
			"circuit_open", open,
		)
		return
	}
	t.breaker.RecordSuccess()
	t.metrics.setCircuitBreakerState(false)
	t.metrics.incTracked()
}
