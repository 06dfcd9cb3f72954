package routeguard

import (
	"context"
	"log/slog"
	"sync"

	"appshell/internal/session/models"
)

// StateSource is the session container as the navigator sees it.
type StateSource interface {
	Hydrated() bool
	Snapshot() models.SessionState
	Subscribe(fn func(models.SessionState)) (unsubscribe func())
}

// Router performs navigation in the presentation layer.
type Router interface {
	Replace(ctx context.Context, path string) error
}

// Navigator keeps the presentation layer on the active region's routes. It
// replaces the route only when the active region changes.
type Navigator struct {
	source StateSource
	router Router
	logger *slog.Logger

	mu          sync.Mutex
	current     Region
	started     bool
	unsubscribe func()
}

type NavigatorOption func(*Navigator)

func WithLogger(logger *slog.Logger) NavigatorOption {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func NewNavigator(source StateSource, router Router, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		source: source,
		router: router,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start routes to the active region and follows state changes until Stop.
// Before hydration it returns ErrNotHydrated and routes nowhere. Calling
// Start again after a successful start is a no-op.
//
// The subscription is taken before the snapshot is read: a change landing
// in between is either already in the snapshot or delivered after start.
func (n *Navigator) Start(ctx context.Context) error {
	if !n.source.Hydrated() {
		return ErrNotHydrated
	}

	n.mu.Lock()
	started := n.started
	n.mu.Unlock()
	if started {
		return nil
	}

	follow := context.WithoutCancel(ctx)
	unsubscribe := n.source.Subscribe(func(state models.SessionState) {
		n.onChange(follow, state)
	})

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		unsubscribe()
		return nil
	}

	region := Evaluate(n.source.Snapshot())
	if err := n.router.Replace(ctx, EntryRoute(region)); err != nil {
		unsubscribe()
		return err
	}
	n.current = region
	n.started = true
	n.unsubscribe = unsubscribe
	return nil
}

func (n *Navigator) onChange(ctx context.Context, state models.SessionState) {
	region := Evaluate(state)

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started || region == n.current {
		return
	}
	if err := n.router.Replace(ctx, EntryRoute(region)); err != nil {
		n.logger.WarnContext(ctx, "route replace failed",
			"from", n.current.String(),
			"to", region.String(),
			"error", err,
		)
		return
	}
	n.logger.DebugContext(ctx, "region changed", "from", n.current.String(), "to", region.String())
	n.current = region
}

// Current reports the region last routed to, or "" before Start.
func (n *Navigator) Current() Region {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Stop detaches from state changes.
func (n *Navigator) Stop() {
	n.mu.Lock()
	unsubscribe := n.unsubscribe
	n.unsubscribe = nil
	n.started = false
	n.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
