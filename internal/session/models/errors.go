package models

import "errors"

var (
	errUnknownStep = errors.New("unknown onboarding step")

	// ErrInvariant marks a SessionState that breaks one of its invariants.
	ErrInvariant = errors.New("session state invariant violated")
)
