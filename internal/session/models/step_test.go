package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "appshell/pkg/domain-errors"
)

func TestParseOnboardingStep(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    OnboardingStep
		wantErr bool
	}{
		{name: "welcome", input: "welcome", want: StepWelcome},
		{name: "setup pin", input: "setup_pin", want: StepSetupPIN},
		{name: "completed", input: "completed", want: StepCompleted},
		{name: "case and whitespace are ignored", input: "  SETUP_PIN ", want: StepSetupPIN},
		{name: "unknown step", input: "verify_email", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOnboardingStep(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOnboardingStepHint(t *testing.T) {
	_, err := ParseOnboardingStep("setup_pn")
	de, ok := dErrors.As(err)
	require.True(t, ok)
	assert.Contains(t, de.Message, `did you mean "setup_pin"?`)

	_, err = ParseOnboardingStep("verify_email")
	de, ok = dErrors.As(err)
	require.True(t, ok)
	assert.NotContains(t, de.Message, "did you mean")
}

func TestOnboardingStepText(t *testing.T) {
	t.Run("known steps round trip through JSON", func(t *testing.T) {
		for _, step := range OnboardingSteps {
			data, err := json.Marshal(step)
			require.NoError(t, err)

			var back OnboardingStep
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, step, back)
		}
	})

	t.Run("unknown value is rejected on decode", func(t *testing.T) {
		var step OnboardingStep
		err := json.Unmarshal([]byte(`"onboarding_three"`), &step)
		require.Error(t, err)
		assert.ErrorIs(t, err, errUnknownStep)
	})

	t.Run("decode is case sensitive", func(t *testing.T) {
		var step OnboardingStep
		require.Error(t, json.Unmarshal([]byte(`"WELCOME"`), &step))
	})

	t.Run("unknown value is rejected on encode", func(t *testing.T) {
		_, err := json.Marshal(OnboardingStep("bogus"))
		require.Error(t, err)
	})
}
