package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilens/defilens/internal/model"
)

func TestDefaultPolicy_Valid(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults", DefaultPolicy().Weights, false},
		{"even split", Weights{TVLHealth: 0.25, Security: 0.25, Funding: 0.25, Diversification: 0.25}, false},
		{"sum below one", Weights{TVLHealth: 0.3, Security: 0.3, Funding: 0.2, Diversification: 0.1}, true},
		{"sum above one", Weights{TVLHealth: 0.5, Security: 0.5, Funding: 0.2, Diversification: 0.1}, true},
		{"negative weight", Weights{TVLHealth: 1.2, Security: -0.2, Funding: 0.5, Diversification: 0.5}, true},
		{"all zero", Weights{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, Thresholds{Strong: 8, Moderate: 5, Weak: 2}.Validate())
	assert.Error(t, Thresholds{Strong: 5, Moderate: 8, Weak: 2}.Validate(), "out of order")
	assert.Error(t, Thresholds{Strong: 11, Moderate: 5, Weak: 2}.Validate(), "above scale")
	assert.Error(t, Thresholds{}.Validate(), "unset")
}

func TestThresholds_Verdict(t *testing.T) {
	th := DefaultPolicy().Thresholds

	tests := []struct {
		overall float64
		want    model.Verdict
	}{
		{9.5, model.VerdictStrong},
		{8.0, model.VerdictStrong},
		{7.9, model.VerdictModerate},
		{5.0, model.VerdictModerate},
		{4.9, model.VerdictWeak},
		{2.0, model.VerdictWeak},
		{1.9, model.VerdictAvoid},
		{0, model.VerdictAvoid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Verdict(tt.overall), "overall %.1f", tt.overall)
	}
}

func TestPolicy_Validate(t *testing.T) {
	p := DefaultPolicy()
	p.ClampCeiling = 12
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.CriticalLossUSD = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.RecencyWindowDays = -1
	assert.Error(t, p.Validate())
}

func TestNewEngine_RejectsInvalidPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.Weights.Security = 0.9

	_, err := NewEngine(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights sum")
}
