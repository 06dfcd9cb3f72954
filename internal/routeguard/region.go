// Package routeguard maps session state onto the top-level navigation
// region the presentation layer may show, and resolves requested routes
// against it.
package routeguard

import "appshell/internal/session/models"

// Region is a mutually exclusive top-level navigation area.
type Region string

const (
	RegionProtected           Region = "protected"
	RegionOnboarding          Region = "onboarding"
	RegionAccountVerification Region = "account_verification"
	RegionRegistration        Region = "registration"
)

// Regions lists every region.
var Regions = []Region{RegionProtected, RegionOnboarding, RegionAccountVerification, RegionRegistration}

func (r Region) String() string { return string(r) }

// Evaluate returns the active region. First matching row wins:
//
//	logged in and onboarding completed  -> protected
//	onboarding not completed            -> onboarding
//	logged out and onboarding completed -> account_verification
//
// Registration is never active on its own; it is reached forward from
// account verification.
func Evaluate(state models.SessionState) Region {
	switch {
	case state.IsLoggedIn && state.HasCompletedOnboarding:
		return RegionProtected
	case !state.HasCompletedOnboarding:
		return RegionOnboarding
	default:
		return RegionAccountVerification
	}
}

// Reachable returns the active region followed by the regions that may be
// navigated to from it.
func Reachable(state models.SessionState) []Region {
	active := Evaluate(state)
	if active == RegionAccountVerification {
		return []Region{RegionAccountVerification, RegionRegistration}
	}
	return []Region{active}
}

// CanEnter reports whether region is reachable from state.
func CanEnter(state models.SessionState, region Region) bool {
	for _, r := range Reachable(state) {
		if r == region {
			return true
		}
	}
	return false
}
