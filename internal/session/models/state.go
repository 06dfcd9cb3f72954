package models

import (
	"fmt"
	"slices"
	"time"

	"appshell/pkg/platform/strings"
)

// Phase is the coarse onboarding state.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

// SessionState is the single persisted record describing authentication
// and onboarding progress.
//
// Transition methods use value receivers and return the next state; they
// never touch I/O or the wall clock, so the receiver is left unchanged.
type SessionState struct {
	IsLoggedIn             bool
	IsOnboardingStarted    bool
	HasCompletedOnboarding bool
	CurrentStep            *OnboardingStep
	CompletedSteps         []OnboardingStep
	OnboardingCompletedAt  *time.Time
}

// Default returns the fresh-install state.
func Default() SessionState {
	return SessionState{CompletedSteps: []OnboardingStep{}}
}

// Clone returns a deep copy; the result shares no pointers or slices with s.
func (s SessionState) Clone() SessionState {
	out := s
	if s.CurrentStep != nil {
		step := *s.CurrentStep
		out.CurrentStep = &step
	}
	if s.OnboardingCompletedAt != nil {
		at := *s.OnboardingCompletedAt
		out.OnboardingCompletedAt = &at
	}
	out.CompletedSteps = append(make([]OnboardingStep, 0, len(s.CompletedSteps)), s.CompletedSteps...)
	return out
}

// Phase derives the coarse onboarding state.
func (s SessionState) Phase() Phase {
	switch {
	case s.HasCompletedOnboarding:
		return PhaseCompleted
	case s.IsOnboardingStarted:
		return PhaseInProgress
	default:
		return PhaseNotStarted
	}
}

// IsStepCompleted reports whether step has been marked complete.
func (s SessionState) IsStepCompleted(step OnboardingStep) bool {
	return slices.Contains(s.CompletedSteps, step)
}

// Equal compares two states field by field, treating nil and empty step
// lists as equal and comparing timestamps by instant.
func (s SessionState) Equal(o SessionState) bool {
	if s.IsLoggedIn != o.IsLoggedIn ||
		s.IsOnboardingStarted != o.IsOnboardingStarted ||
		s.HasCompletedOnboarding != o.HasCompletedOnboarding {
		return false
	}
	if (s.CurrentStep == nil) != (o.CurrentStep == nil) {
		return false
	}
	if s.CurrentStep != nil && *s.CurrentStep != *o.CurrentStep {
		return false
	}
	if (s.OnboardingCompletedAt == nil) != (o.OnboardingCompletedAt == nil) {
		return false
	}
	if s.OnboardingCompletedAt != nil && !s.OnboardingCompletedAt.Equal(*o.OnboardingCompletedAt) {
		return false
	}
	return slices.Equal(s.CompletedSteps, o.CompletedSteps)
}

// StartOnboarding enters the InProgress phase at the welcome step.
// Completed is terminal: starting again requires ResetOnboarding first, so
// on a completed state this returns an unchanged copy.
func (s SessionState) StartOnboarding() SessionState {
	next := s.Clone()
	if s.HasCompletedOnboarding {
		return next
	}
	next.IsOnboardingStarted = true
	next.CurrentStep = stepPtr(StepWelcome)
	return next
}

// SetOnboardingStep moves the presented step. Step history is not touched.
func (s SessionState) SetOnboardingStep(step OnboardingStep) (SessionState, error) {
	if err := ValidateStep(step); err != nil {
		return s, err
	}
	next := s.Clone()
	next.CurrentStep = stepPtr(step)
	return next, nil
}

// CompleteOnboardingStep records step as finished. Marking an already
// finished step is a no-op.
func (s SessionState) CompleteOnboardingStep(step OnboardingStep) (SessionState, error) {
	if err := ValidateStep(step); err != nil {
		return s, err
	}
	next := s.Clone()
	next.CompletedSteps = strings.AppendUnique(next.CompletedSteps, step)
	return next, nil
}

// CompleteOnboarding finishes onboarding at now.
func (s SessionState) CompleteOnboarding(now time.Time) SessionState {
	next := s.Clone()
	next.HasCompletedOnboarding = true
	next.IsOnboardingStarted = false
	next.CurrentStep = stepPtr(StepCompleted)
	next.OnboardingCompletedAt = timePtr(now)
	return next
}

// SkipOnboarding finishes onboarding at now without presenting a step.
func (s SessionState) SkipOnboarding(now time.Time) SessionState {
	next := s.Clone()
	next.HasCompletedOnboarding = true
	next.IsOnboardingStarted = false
	next.CurrentStep = nil
	next.OnboardingCompletedAt = timePtr(now)
	return next
}

// ResetOnboarding returns every onboarding field to its default and keeps
// the login flag.
func (s SessionState) ResetOnboarding() SessionState {
	next := Default()
	next.IsLoggedIn = s.IsLoggedIn
	return next
}

func (s SessionState) LogIn() SessionState {
	next := s.Clone()
	next.IsLoggedIn = true
	return next
}

func (s SessionState) LogOut() SessionState {
	next := s.Clone()
	next.IsLoggedIn = false
	return next
}

// Validate checks the record invariants.
func (s SessionState) Validate() error {
	if s.HasCompletedOnboarding && s.IsOnboardingStarted {
		return fmt.Errorf("%w: completed onboarding cannot still be started", ErrInvariant)
	}
	if s.HasCompletedOnboarding != (s.OnboardingCompletedAt != nil) {
		return fmt.Errorf("%w: completion timestamp must be set exactly when onboarding is completed", ErrInvariant)
	}
	if s.CurrentStep != nil && !s.CurrentStep.IsValid() {
		return fmt.Errorf("%w: current step %q is unknown", ErrInvariant, string(*s.CurrentStep))
	}
	seen := make(map[OnboardingStep]struct{}, len(s.CompletedSteps))
	for _, step := range s.CompletedSteps {
		if !step.IsValid() {
			return fmt.Errorf("%w: completed step %q is unknown", ErrInvariant, string(step))
		}
		if _, dup := seen[step]; dup {
			return fmt.Errorf("%w: completed step %q listed twice", ErrInvariant, string(step))
		}
		seen[step] = struct{}{}
	}
	return nil
}

func stepPtr(step OnboardingStep) *OnboardingStep { return &step }

func timePtr(t time.Time) *time.Time {
	utc := t.UTC()
	return &utc
}
