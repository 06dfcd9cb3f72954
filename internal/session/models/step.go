package models

import (
	"fmt"

	dErrors "appshell/pkg/domain-errors"
	"appshell/pkg/platform/strings"
)

// OnboardingStep is one stage of the first-run onboarding flow. The set of
// values is closed; anything else is rejected at the boundary.
type OnboardingStep string

const (
	StepWelcome   OnboardingStep = "welcome"
	StepSetupPIN  OnboardingStep = "setup_pin"
	StepCompleted OnboardingStep = "completed"
)

// OnboardingSteps lists every step in flow order.
var OnboardingSteps = []OnboardingStep{StepWelcome, StepSetupPIN, StepCompleted}

// IsValid reports whether s is one of the known steps.
func (s OnboardingStep) IsValid() bool {
	switch s {
	case StepWelcome, StepSetupPIN, StepCompleted:
		return true
	}
	return false
}

func (s OnboardingStep) String() string { return string(s) }

// ParseOnboardingStep accepts user-supplied input, ignoring case and
// surrounding whitespace. Near misses get a hint in the error message.
func ParseOnboardingStep(raw string) (OnboardingStep, error) {
	step := OnboardingStep(strings.NormalizeKey(raw))
	if !step.IsValid() {
		msg := fmt.Sprintf("unknown onboarding step %q", raw)
		if hint, ok := strings.Suggest(raw, stepNames()); ok {
			msg += fmt.Sprintf(", did you mean %q?", hint)
		}
		return "", dErrors.New(dErrors.CodeValidation, msg)
	}
	return step, nil
}

func stepNames() []string {
	names := make([]string, len(OnboardingSteps))
	for i, s := range OnboardingSteps {
		names[i] = string(s)
	}
	return names
}

// MarshalText rejects unknown values so a bad step can never be written.
func (s OnboardingStep) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("marshal onboarding step %q: %w", string(s), errUnknownStep)
	}
	return []byte(s), nil
}

// UnmarshalText is strict: stored values must match exactly.
func (s *OnboardingStep) UnmarshalText(text []byte) error {
	step := OnboardingStep(text)
	if !step.IsValid() {
		return fmt.Errorf("unmarshal onboarding step %q: %w", string(text), errUnknownStep)
	}
	*s = step
	return nil
}

// ValidateStep returns a validation error for unknown steps.
func ValidateStep(step OnboardingStep) error {
	if !step.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown onboarding step %q", string(step)))
	}
	return nil
}
