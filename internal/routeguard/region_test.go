package routeguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appshell/internal/session/models"
)

var completedAt = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// P5: every combination of the guard inputs selects exactly one branch.
func TestEvaluateIsTotalAndExclusive(t *testing.T) {
	for _, loggedIn := range []bool{false, true} {
		for _, started := range []bool{false, true} {
			for _, completed := range []bool{false, true} {
				state := models.SessionState{
					IsLoggedIn:             loggedIn,
					IsOnboardingStarted:    started,
					HasCompletedOnboarding: completed,
				}

				matches := 0
				if loggedIn && completed {
					matches++
				}
				if !completed {
					matches++
				}
				if !loggedIn && completed {
					matches++
				}
				require.Equal(t, 1, matches, "decision rows overlap for %+v", state)

				got := Evaluate(state)
				assert.Contains(t, []Region{RegionProtected, RegionOnboarding, RegionAccountVerification}, got)
				assert.NotEqual(t, RegionRegistration, got, "registration is never the entry region")
			}
		}
	}
}

func TestEvaluateScenarios(t *testing.T) {
	tests := []struct {
		name  string
		state func() models.SessionState
		want  Region
	}{
		{
			name:  "A: fresh install",
			state: models.Default,
			want:  RegionOnboarding,
		},
		{
			name: "B: onboarding in progress",
			state: func() models.SessionState {
				st, _ := models.Default().StartOnboarding().SetOnboardingStep(models.StepSetupPIN)
				return st
			},
			want: RegionOnboarding,
		},
		{
			name: "logged in but onboarding unfinished",
			state: func() models.SessionState {
				return models.Default().LogIn()
			},
			want: RegionOnboarding,
		},
		{
			name: "C: completed while logged out",
			state: func() models.SessionState {
				return models.Default().StartOnboarding().CompleteOnboarding(completedAt)
			},
			want: RegionAccountVerification,
		},
		{
			name: "D: completed and logged in",
			state: func() models.SessionState {
				return models.Default().StartOnboarding().CompleteOnboarding(completedAt).LogIn()
			},
			want: RegionProtected,
		},
		{
			name: "skipped while logged out",
			state: func() models.SessionState {
				return models.Default().SkipOnboarding(completedAt)
			},
			want: RegionAccountVerification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state()))
		})
	}
}

func TestReachable(t *testing.T) {
	verification := models.Default().SkipOnboarding(completedAt)

	t.Run("verification branch exposes registration as a forward step", func(t *testing.T) {
		assert.Equal(t, []Region{RegionAccountVerification, RegionRegistration}, Reachable(verification))
		assert.True(t, CanEnter(verification, RegionRegistration))
		assert.False(t, CanEnter(verification, RegionProtected))
		assert.False(t, CanEnter(verification, RegionOnboarding))
	})

	t.Run("onboarding reaches nothing else", func(t *testing.T) {
		assert.Equal(t, []Region{RegionOnboarding}, Reachable(models.Default()))
		assert.False(t, CanEnter(models.Default(), RegionRegistration))
	})

	t.Run("protected reaches nothing else", func(t *testing.T) {
		st := verification.LogIn()
		assert.Equal(t, []Region{RegionProtected}, Reachable(st))
		assert.False(t, CanEnter(st, RegionAccountVerification))
	})
}
