package routeguard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"appshell/internal/kvstore"
	"appshell/internal/session/models"
	"appshell/internal/session/service"
)

type NavigatorSuite struct {
	suite.Suite
	ctx    context.Context
	svc    *service.Service
	router *recordingRouter
	nav    *Navigator
}

func TestNavigatorSuite(t *testing.T) {
	suite.Run(t, new(NavigatorSuite))
}

func (s *NavigatorSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(kvstore.NewMemory(), service.WithLogger(logger))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = svc.Close(context.Background()) })
	s.svc = svc
	s.router = &recordingRouter{}
	s.nav = NewNavigator(svc, s.router, WithLogger(logger))
}

func (s *NavigatorSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *NavigatorSuite) TestStart() {
	s.Run("refuses before hydration", func() {
		s.ErrorIs(s.nav.Start(s.ctx), ErrNotHydrated)
		s.Empty(s.router.paths())
		s.Equal(Region(""), s.nav.Current())
	})

	s.Run("routes to the active region after hydration", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.Require().NoError(s.nav.Start(s.ctx))
		s.Equal([]string{"/(onboarding)"}, s.router.paths())
		s.Equal(RegionOnboarding, s.nav.Current())
	})

	s.Run("second start is a no-op", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.Require().NoError(s.nav.Start(s.ctx))
		s.Require().NoError(s.nav.Start(s.ctx))
		s.Len(s.router.paths(), 1)
	})

	s.Run("router failure is returned", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.router.fail = errors.New("no window")
		s.Error(s.nav.Start(s.ctx))
		s.Equal(Region(""), s.nav.Current())

		s.router.fail = nil
		s.svc.SkipOnboarding(s.ctx)
		s.Empty(s.router.paths())
	})

	s.Run("change landing while starting is not lost", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		source := &racingSource{Service: s.svc, ctx: s.ctx}
		nav := NewNavigator(source, s.router)
		s.Require().NoError(nav.Start(s.ctx))

		s.Equal(RegionAccountVerification, nav.Current())
		s.Equal([]string{"/(account-verification)"}, s.router.paths())

		s.svc.LogIn(s.ctx)
		s.Equal(RegionProtected, nav.Current())
	})
}

// racingSource skips onboarding the moment the navigator subscribes, before
// it has read a snapshot.
type racingSource struct {
	*service.Service
	ctx context.Context
}

func (r *racingSource) Subscribe(fn func(models.SessionState)) func() {
	unsubscribe := r.Service.Subscribe(fn)
	r.Service.SkipOnboarding(r.ctx)
	return unsubscribe
}

func (s *NavigatorSuite) TestFollowsStateChanges() {
	s.Run("replaces only when the region changes", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.Require().NoError(s.nav.Start(s.ctx))

		s.svc.StartOnboarding(s.ctx)
		s.svc.CompleteOnboarding(s.ctx)
		s.svc.LogIn(s.ctx)
		s.svc.LogIn(s.ctx)
		s.svc.LogOut(s.ctx)

		s.Equal([]string{
			"/(onboarding)",
			"/(account-verification)",
			"/",
			"/(account-verification)",
		}, s.router.paths())
		s.Equal(RegionAccountVerification, s.nav.Current())
	})

	s.Run("reset sends the user back to onboarding", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.svc.SkipOnboarding(s.ctx)
		s.svc.LogIn(s.ctx)
		s.Require().NoError(s.nav.Start(s.ctx))

		s.svc.ResetOnboarding(s.ctx)
		s.Equal([]string{"/", "/(onboarding)"}, s.router.paths())
	})

	s.Run("failed replace is retried on the next change", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.Require().NoError(s.nav.Start(s.ctx))

		s.router.fail = errors.New("busy")
		s.svc.SkipOnboarding(s.ctx)
		s.Equal(RegionOnboarding, s.nav.Current())

		s.router.fail = nil
		s.svc.LogIn(s.ctx)
		s.Equal(RegionProtected, s.nav.Current())
	})

	s.Run("stop detaches", func() {
		s.Require().NoError(s.svc.Init(s.ctx))
		s.Require().NoError(s.nav.Start(s.ctx))
		s.nav.Stop()

		s.svc.SkipOnboarding(s.ctx)
		s.Len(s.router.paths(), 1)
	})
}

type recordingRouter struct {
	mu    sync.Mutex
	fail  error
	calls []string
}

func (r *recordingRouter) Replace(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, path)
	return nil
}

func (r *recordingRouter) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
