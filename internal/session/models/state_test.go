package models

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "appshell/pkg/domain-errors"
)

type SessionStateSuite struct {
	suite.Suite
	now time.Time
}

func TestSessionStateSuite(t *testing.T) {
	suite.Run(t, new(SessionStateSuite))
}

func (s *SessionStateSuite) SetupTest() {
	s.now = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
}

func (s *SessionStateSuite) TestDefault() {
	st := Default()
	s.False(st.IsLoggedIn)
	s.False(st.IsOnboardingStarted)
	s.False(st.HasCompletedOnboarding)
	s.Nil(st.CurrentStep)
	s.Empty(st.CompletedSteps)
	s.NotNil(st.CompletedSteps)
	s.Nil(st.OnboardingCompletedAt)
	s.Equal(PhaseNotStarted, st.Phase())
	s.NoError(st.Validate())
}

func (s *SessionStateSuite) TestStartOnboarding() {
	st := Default().StartOnboarding()
	s.True(st.IsOnboardingStarted)
	s.Require().NotNil(st.CurrentStep)
	s.Equal(StepWelcome, *st.CurrentStep)
	s.Equal(PhaseInProgress, st.Phase())

	s.Run("completed onboarding is not restarted", func() {
		done := Default().SkipOnboarding(s.now)
		again := done.StartOnboarding()
		s.True(done.Equal(again))
		s.NoError(again.Validate())
	})

	s.Run("restart after reset", func() {
		st := Default().SkipOnboarding(s.now).ResetOnboarding().StartOnboarding()
		s.Equal(PhaseInProgress, st.Phase())
	})
}

// Scenario B at the model level.
func (s *SessionStateSuite) TestSetOnboardingStep() {
	s.Run("moves the current step without touching history", func() {
		st, err := Default().StartOnboarding().SetOnboardingStep(StepSetupPIN)
		s.Require().NoError(err)
		s.Require().NotNil(st.CurrentStep)
		s.Equal(StepSetupPIN, *st.CurrentStep)
		s.Empty(st.CompletedSteps)
		s.Equal(PhaseInProgress, st.Phase())
	})

	s.Run("unknown step is rejected and state is unchanged", func() {
		before := Default().StartOnboarding()
		after, err := before.SetOnboardingStep(OnboardingStep("nope"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.True(before.Equal(after))
	})
}

// P1: marking a step twice equals marking it once.
func (s *SessionStateSuite) TestCompleteOnboardingStepIsIdempotent() {
	base, err := Default().StartOnboarding().CompleteOnboardingStep(StepWelcome)
	s.Require().NoError(err)

	for _, step := range OnboardingSteps {
		once, err := base.CompleteOnboardingStep(step)
		s.Require().NoError(err)
		twice, err := once.CompleteOnboardingStep(step)
		s.Require().NoError(err)
		s.Equal(once.CompletedSteps, twice.CompletedSteps, "step %s", step)
	}

	s.Run("order of first insertion is kept", func() {
		st, _ := Default().CompleteOnboardingStep(StepSetupPIN)
		st, _ = st.CompleteOnboardingStep(StepWelcome)
		st, _ = st.CompleteOnboardingStep(StepSetupPIN)
		s.Equal([]OnboardingStep{StepSetupPIN, StepWelcome}, st.CompletedSteps)
		s.True(st.IsStepCompleted(StepWelcome))
		s.False(st.IsStepCompleted(StepCompleted))
	})

	s.Run("unknown step is rejected", func() {
		_, err := Default().CompleteOnboardingStep(OnboardingStep("bonus"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// Scenario C at the model level.
func (s *SessionStateSuite) TestCompleteOnboarding() {
	st := Default().StartOnboarding().CompleteOnboarding(s.now)
	s.True(st.HasCompletedOnboarding)
	s.False(st.IsOnboardingStarted)
	s.Require().NotNil(st.CurrentStep)
	s.Equal(StepCompleted, *st.CurrentStep)
	s.Require().NotNil(st.OnboardingCompletedAt)
	s.True(s.now.Equal(*st.OnboardingCompletedAt))
	s.Equal(PhaseCompleted, st.Phase())
	s.NoError(st.Validate())
}

// Scenario E at the model level.
func (s *SessionStateSuite) TestSkipOnboardingFromNotStarted() {
	st := Default().SkipOnboarding(s.now)
	s.True(st.HasCompletedOnboarding)
	s.False(st.IsOnboardingStarted)
	s.Nil(st.CurrentStep)
	s.Empty(st.CompletedSteps)
	s.Require().NotNil(st.OnboardingCompletedAt)
	s.NoError(st.Validate())
}

// P3: reset clears onboarding only.
func (s *SessionStateSuite) TestResetOnboardingKeepsLogin() {
	st, _ := Default().LogIn().StartOnboarding().CompleteOnboardingStep(StepWelcome)
	st = st.CompleteOnboarding(s.now)

	reset := st.ResetOnboarding()
	s.True(reset.IsLoggedIn)

	want := Default()
	want.IsLoggedIn = true
	s.True(want.Equal(reset))

	s.Run("logged out stays logged out", func() {
		s.False(Default().SkipOnboarding(s.now).ResetOnboarding().IsLoggedIn)
	})
}

func (s *SessionStateSuite) TestLoginIsOrthogonalToOnboarding() {
	st := Default().StartOnboarding()
	in := st.LogIn()
	s.True(in.IsLoggedIn)
	s.Equal(st.Phase(), in.Phase())

	out := in.LogOut()
	s.False(out.IsLoggedIn)
	s.True(st.Equal(out))
}

func (s *SessionStateSuite) TestTransitionsDoNotAliasReceiver() {
	st, _ := Default().StartOnboarding().CompleteOnboardingStep(StepWelcome)
	next, _ := st.CompleteOnboardingStep(StepSetupPIN)
	next.CompletedSteps[0] = StepCompleted
	*next.CurrentStep = StepSetupPIN

	s.Equal([]OnboardingStep{StepWelcome}, st.CompletedSteps)
	s.Equal(StepWelcome, *st.CurrentStep)
}

func (s *SessionStateSuite) TestValidate() {
	at := s.now
	welcome := StepWelcome
	bogus := OnboardingStep("bogus")

	tests := []struct {
		name  string
		state SessionState
		ok    bool
	}{
		{name: "default", state: Default(), ok: true},
		{name: "completed while started", state: SessionState{HasCompletedOnboarding: true, IsOnboardingStarted: true, OnboardingCompletedAt: &at}},
		{name: "completed without timestamp", state: SessionState{HasCompletedOnboarding: true}},
		{name: "timestamp without completion", state: SessionState{OnboardingCompletedAt: &at}},
		{name: "duplicate step", state: SessionState{CompletedSteps: []OnboardingStep{StepWelcome, StepWelcome}}},
		{name: "unknown completed step", state: SessionState{CompletedSteps: []OnboardingStep{bogus}}},
		{name: "unknown current step", state: SessionState{CurrentStep: &bogus}},
		{name: "in progress", state: SessionState{IsOnboardingStarted: true, CurrentStep: &welcome}, ok: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := tt.state.Validate()
			if tt.ok {
				s.NoError(err)
			} else {
				s.ErrorIs(err, ErrInvariant)
			}
		})
	}
}

// P2 over random operation sequences: every reachable state is valid, and
// completion always implies not-started plus a timestamp.
func (s *SessionStateSuite) TestRandomSequencesKeepInvariants() {
	r := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		st := Default()
		for i := 0; i < 25; i++ {
			st = applyRandom(st, r, s.now)
			s.Require().NoError(st.Validate())
			if st.HasCompletedOnboarding {
				s.Require().False(st.IsOnboardingStarted)
				s.Require().NotNil(st.OnboardingCompletedAt)
			}
		}
	}
}

func applyRandom(st SessionState, r *rand.Rand, now time.Time) SessionState {
	step := OnboardingSteps[r.Intn(len(OnboardingSteps))]
	switch r.Intn(8) {
	case 0:
		return st.StartOnboarding()
	case 1:
		next, _ := st.SetOnboardingStep(step)
		return next
	case 2:
		next, _ := st.CompleteOnboardingStep(step)
		return next
	case 3:
		return st.CompleteOnboarding(now)
	case 4:
		return st.SkipOnboarding(now)
	case 5:
		return st.ResetOnboarding()
	case 6:
		return st.LogIn()
	default:
		return st.LogOut()
	}
}
