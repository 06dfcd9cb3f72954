// Package codec maps SessionState to and from the single persisted record.
//
// The record is a JSON document carrying schema_version. Version 1 holds
// every SessionState field. Records written before versioning existed are
// zustand persist envelopes ({"state": {...}, "version": 0}) that only
// carry the two booleans; they decode as version 0 and are upgraded.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"appshell/internal/session/models"
	"appshell/pkg/platform/sentinel"
	"appshell/pkg/platform/strings"
)

// CurrentVersion is the schema version Encode writes.
const CurrentVersion = 1

// legacyCompletedAt stands in for the completion time of records that
// never stored one.
var legacyCompletedAt = time.Unix(0, 0).UTC()

type record struct {
	SchemaVersion          int                     `json:"schema_version"`
	IsLoggedIn             bool                    `json:"is_logged_in"`
	IsOnboardingStarted    bool                    `json:"is_onboarding_started"`
	HasCompletedOnboarding bool                    `json:"has_completed_onboarding"`
	CurrentStep            *models.OnboardingStep  `json:"current_step"`
	CompletedSteps         []models.OnboardingStep `json:"completed_steps"`
	OnboardingCompletedAt  *string                 `json:"onboarding_completed_at"`
}

type legacyEnvelope struct {
	State *struct {
		IsLoggedIn             bool `json:"is_logged_in"`
		HasCompletedOnboarding bool `json:"has_completed_onboarding"`
	} `json:"state"`
	Version int `json:"version"`
}

type envelopeHeader struct {
	SchemaVersion *int            `json:"schema_version"`
	State         json.RawMessage `json:"state"`
}

// Encode serializes the full snapshot. Invalid states are refused so a
// broken record is never written.
func Encode(state models.SessionState) (string, error) {
	if err := state.Validate(); err != nil {
		return "", fmt.Errorf("encode session state: %w", err)
	}

	rec := record{
		SchemaVersion:          CurrentVersion,
		IsLoggedIn:             state.IsLoggedIn,
		IsOnboardingStarted:    state.IsOnboardingStarted,
		HasCompletedOnboarding: state.HasCompletedOnboarding,
		CurrentStep:            state.CurrentStep,
		CompletedSteps:         state.CompletedSteps,
	}
	if rec.CompletedSteps == nil {
		rec.CompletedSteps = []models.OnboardingStep{}
	}
	if state.OnboardingCompletedAt != nil {
		ts := state.OnboardingCompletedAt.UTC().Format(time.RFC3339Nano)
		rec.OnboardingCompletedAt = &ts
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode session state: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored record. Anything that cannot be turned into a
// valid SessionState wraps sentinel.ErrCorrupt.
func Decode(raw string) (models.SessionState, error) {
	state, _, err := DecodeVersion(raw)
	return state, err
}

// DecodeVersion is Decode that also reports the schema version the record
// was stored with.
func DecodeVersion(raw string) (models.SessionState, int, error) {
	var p envelopeHeader
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.SessionState{}, 0, corrupt("malformed json: %v", err)
	}

	switch {
	case p.SchemaVersion == nil && len(p.State) > 0:
		state, err := decodeLegacy(raw)
		return state, 0, err
	case p.SchemaVersion == nil:
		return models.SessionState{}, 0, corrupt("missing schema_version")
	case *p.SchemaVersion == 1:
		state, err := decodeV1(raw)
		return state, 1, err
	default:
		return models.SessionState{}, *p.SchemaVersion, corrupt("unsupported schema_version %d", *p.SchemaVersion)
	}
}

func decodeV1(raw string) (models.SessionState, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.SessionState{}, corrupt("decode v1 record: %v", err)
	}

	state := models.SessionState{
		IsLoggedIn:             rec.IsLoggedIn,
		IsOnboardingStarted:    rec.IsOnboardingStarted,
		HasCompletedOnboarding: rec.HasCompletedOnboarding,
		CurrentStep:            rec.CurrentStep,
		CompletedSteps:         strings.Dedupe(rec.CompletedSteps),
	}
	if state.CompletedSteps == nil {
		state.CompletedSteps = []models.OnboardingStep{}
	}
	if rec.OnboardingCompletedAt != nil {
		at, err := time.Parse(time.RFC3339Nano, *rec.OnboardingCompletedAt)
		if err != nil {
			return models.SessionState{}, corrupt("onboarding_completed_at: %v", err)
		}
		at = at.UTC()
		state.OnboardingCompletedAt = &at
	}

	if err := state.Validate(); err != nil {
		return models.SessionState{}, corrupt("%v", err)
	}
	return state, nil
}

func decodeLegacy(raw string) (models.SessionState, error) {
	var env legacyEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.State == nil {
		return models.SessionState{}, corrupt("decode legacy envelope: %v", err)
	}

	state := models.Default()
	state.IsLoggedIn = env.State.IsLoggedIn
	if env.State.HasCompletedOnboarding {
		at := legacyCompletedAt
		state.HasCompletedOnboarding = true
		state.CurrentStep = nil
		state.OnboardingCompletedAt = &at
	}
	return state, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel.ErrCorrupt, fmt.Sprintf(format, args...))
}
