// Package service holds the single authoritative session state of the shell.
//
// Mutations are applied in memory under a mutex and handed to a write-behind
// persister; callers never wait on storage. Hydration runs once at startup
// and degrades to the default state when the stored record is missing,
// unreadable or corrupt.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"appshell/internal/session/codec"
	"appshell/internal/session/metrics"
	"appshell/internal/session/models"
	"appshell/internal/session/observability"
	"appshell/pkg/platform/audit"
	"appshell/pkg/platform/audit/publishers/ops"
	"appshell/pkg/platform/sentinel"
	"appshell/pkg/requestcontext"
)

// KVStore is the durable key-value port the session record lives in.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

const (
	defaultStorageKey   = "auth-storess"
	defaultWriteTimeout = 2 * time.Second
)

// Service is the session state container.
type Service struct {
	kv           KVStore
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracker      *ops.Tracker
	now          func() time.Time
	storageKey   string
	writeTimeout time.Duration

	// mutateMu serializes mutations and subscriber delivery so listeners
	// see snapshots in mutation order. Listeners must not mutate
	// synchronously.
	mutateMu sync.Mutex

	mu          sync.RWMutex
	state       models.SessionState
	dirty       bool
	subscribers map[uint64]func(models.SessionState)
	nextSubID   uint64

	initOnce  sync.Once
	hydrated  atomic.Bool
	persister *persister
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOpsTracker forwards audit events to an ops tracker.
func WithOpsTracker(t *ops.Tracker) Option {
	return func(s *Service) {
		s.tracker = t
	}
}

// WithClock overrides the time source used for completion timestamps when
// the context carries no pinned request time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStorageKey sets the key the record is stored under.
func WithStorageKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.storageKey = key
		}
	}
}

// WithWriteTimeout bounds each persistence attempt.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// New constructs a Service and starts its persister. Call Close to stop it.
func New(kv KVStore, opts ...Option) (*Service, error) {
	if kv == nil {
		return nil, errors.New("kv store is required")
	}
	s := &Service{
		kv:           kv,
		logger:       slog.Default(),
		now:          time.Now,
		storageKey:   defaultStorageKey,
		writeTimeout: defaultWriteTimeout,
		state:        models.Default(),
		subscribers:  make(map[uint64]func(models.SessionState)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.persister = newPersister(s.writeSnapshot, s.metrics.IncrementCoalesced)
	return s, nil
}

// Init hydrates the state from storage. Only the first call does any work.
// Storage and decode failures are logged and counted; the service then
// starts from the default state and Init still returns nil.
func (s *Service) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.hydrate(ctx)
	})
	return nil
}

// hydrate reads storage without holding mutateMu so mutations issued during
// Init do not wait on I/O. dirty is checked under mu, where apply sets it.
func (s *Service) hydrate(ctx context.Context) {
	loaded, outcome := s.load(ctx)

	s.mu.Lock()
	if s.dirty {
		s.logger.WarnContext(ctx, "session mutated before hydration; keeping live state",
			"storage_key", s.storageKey,
		)
	} else {
		s.state = loaded
	}
	s.mu.Unlock()

	s.hydrated.Store(true)
	s.metrics.IncrementHydrate(outcome)
	observability.LogAudit(ctx, s.logger, s.tracker, audit.EventSessionHydrated,
		"storage_key", s.storageKey,
		"outcome", outcome,
	)
}

func (s *Service) load(ctx context.Context) (models.SessionState, string) {
	raw, err := s.kv.Get(ctx, s.storageKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Default(), metrics.HydrateFresh
	}
	if err != nil {
		observability.LogAudit(ctx, s.logger, s.tracker, audit.EventHydrateFailed,
			"storage_key", s.storageKey,
			"reason", readFailureReason(err),
			"error", err.Error(),
		)
		return models.Default(), metrics.HydrateFailed
	}

	state, version, err := codec.DecodeVersion(raw)
	if err != nil {
		observability.LogAudit(ctx, s.logger, s.tracker, audit.EventHydrateFailed,
			"storage_key", s.storageKey,
			"reason", metrics.HydrateCorrupt,
			"error", err.Error(),
		)
		return models.Default(), metrics.HydrateCorrupt
	}
	if version < codec.CurrentVersion {
		s.metrics.IncrementLegacyMigration()
		s.logger.InfoContext(ctx, "migrated legacy session record",
			"storage_key", s.storageKey,
			"from_version", version,
		)
	}
	return state, metrics.HydrateRestored
}

func readFailureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, sentinel.ErrUnavailable):
		return "unavailable"
	}
	return metrics.HydrateFailed
}

// Hydrated reports whether Init has completed.
func (s *Service) Hydrated() bool {
	return s.hydrated.Load()
}

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Service) IsStepCompleted(step models.OnboardingStep) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsStepCompleted(step)
}

// Subscribe registers fn to receive the new snapshot after every mutation.
// The returned func removes the listener.
func (s *Service) Subscribe(fn func(models.SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) StartOnboarding(ctx context.Context) {
	s.apply(ctx, audit.EventOnboardingStarted, func(st models.SessionState) (models.SessionState, error) {
		return st.StartOnboarding(), nil
	})
}

// SetOnboardingStep moves the presented step. Unknown steps return a
// validation error and leave the state untouched.
func (s *Service) SetOnboardingStep(ctx context.Context, step models.OnboardingStep) error {
	return s.apply(ctx, audit.EventOnboardingStepSet, func(st models.SessionState) (models.SessionState, error) {
		return st.SetOnboardingStep(step)
	}, "step", step.String())
}

// CompleteOnboardingStep marks step finished. Unknown steps return a
// validation error and leave the state untouched.
func (s *Service) CompleteOnboardingStep(ctx context.Context, step models.OnboardingStep) error {
	return s.apply(ctx, audit.EventOnboardingStepCompleted, func(st models.SessionState) (models.SessionState, error) {
		return st.CompleteOnboardingStep(step)
	}, "step", step.String())
}

func (s *Service) CompleteOnboarding(ctx context.Context) {
	s.apply(ctx, audit.EventOnboardingCompleted, func(st models.SessionState) (models.SessionState, error) {
		return st.CompleteOnboarding(requestcontext.Now(ctx, s.now)), nil
	})
}

func (s *Service) SkipOnboarding(ctx context.Context) {
	s.apply(ctx, audit.EventOnboardingSkipped, func(st models.SessionState) (models.SessionState, error) {
		return st.SkipOnboarding(requestcontext.Now(ctx, s.now)), nil
	})
}

func (s *Service) ResetOnboarding(ctx context.Context) {
	s.apply(ctx, audit.EventOnboardingReset, func(st models.SessionState) (models.SessionState, error) {
		return st.ResetOnboarding(), nil
	})
}

func (s *Service) LogIn(ctx context.Context) {
	s.apply(ctx, audit.EventLoggedIn, func(st models.SessionState) (models.SessionState, error) {
		return st.LogIn(), nil
	})
}

func (s *Service) LogOut(ctx context.Context) {
	s.apply(ctx, audit.EventLoggedOut, func(st models.SessionState) (models.SessionState, error) {
		return st.LogOut(), nil
	})
}

func (s *Service) apply(ctx context.Context, event audit.AuditEvent, transition func(models.SessionState) (models.SessionState, error), attrList ...any) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	s.mu.Lock()
	next, err := transition(s.state)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.dirty = true
	listeners := make([]func(models.SessionState), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if !s.persister.enqueue(next.Clone()) {
		s.logger.DebugContext(ctx, "persister closed; mutation kept in memory only", "event", string(event))
	}

	for _, fn := range listeners {
		fn(next.Clone())
	}

	s.metrics.IncrementMutation(string(event))
	attrList = append(attrList, "phase", string(next.Phase()))
	observability.LogAudit(ctx, s.logger, s.tracker, event, attrList...)
	return nil
}

// Flush waits until the latest snapshot handed to the persister has been
// attempted.
func (s *Service) Flush(ctx context.Context) error {
	return s.persister.flush(ctx)
}

// Close flushes pending writes and stops the persister. Mutations after
// Close still update memory but are no longer persisted.
func (s *Service) Close(ctx context.Context) error {
	return s.persister.close(ctx)
}

// ClearPersisted deletes the stored record. In-memory state is untouched.
func (s *Service) ClearPersisted(ctx context.Context) error {
	if err := s.persister.flush(ctx); err != nil && !errors.Is(err, errPersisterClosed) {
		return err
	}
	if err := s.kv.Remove(ctx, s.storageKey); err != nil {
		return err
	}
	observability.LogAudit(ctx, s.logger, s.tracker, audit.EventPersistedRecordGone,
		"storage_key", s.storageKey,
	)
	return nil
}

func (s *Service) writeSnapshot(state models.SessionState) {
	raw, err := codec.Encode(state)
	if err != nil {
		s.logger.Error("refusing to persist invalid session state", "error", err)
		s.metrics.ObservePersist(time.Now(), err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	start := time.Now()
	err = s.kv.Set(ctx, s.storageKey, raw)
	s.metrics.ObservePersist(start, err)
	if err != nil {
		observability.LogAudit(ctx, s.logger, s.tracker, audit.EventPersistWriteFailed,
			"storage_key", s.storageKey,
			"error", err.Error(),
		)
	}
}
