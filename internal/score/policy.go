package score

import (
	"fmt"
	"math"

	"github.com/defilens/defilens/internal/model"
)

// Weights allocates the composite score across the four sub-domains.
// The split is a policy choice, kept in one named place and validated
// to sum to 1 at load time, never per call.
type Weights struct {
	TVLHealth       float64 `yaml:"tvl_health"`
	Security        float64 `yaml:"security"`
	Funding         float64 `yaml:"funding"`
	Diversification float64 `yaml:"diversification"`
}

func (w Weights) Sum() float64 {
	return w.TVLHealth + w.Security + w.Funding + w.Diversification
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"tvl_health":      w.TVLHealth,
		"security":        w.Security,
		"funding":         w.Funding,
		"diversification": w.Diversification,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s must be within [0,1], got %.3f", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.3f, expected 1.000", sum)
	}
	return nil
}

// Thresholds maps the overall score onto a verdict.
type Thresholds struct {
	Strong   float64 `yaml:"strong"`
	Moderate float64 `yaml:"moderate"`
	Weak     float64 `yaml:"weak"`
}

func (t Thresholds) Validate() error {
	if !(0 < t.Weak && t.Weak < t.Moderate && t.Moderate < t.Strong && t.Strong <= 10) {
		return fmt.Errorf("verdict thresholds must satisfy 0 < weak < moderate < strong <= 10, got %.1f/%.1f/%.1f",
			t.Weak, t.Moderate, t.Strong)
	}
	return nil
}

func (t Thresholds) Verdict(overall float64) model.Verdict {
	switch {
	case overall >= t.Strong:
		return model.VerdictStrong
	case overall >= t.Moderate:
		return model.VerdictModerate
	case overall >= t.Weak:
		return model.VerdictWeak
	default:
		return model.VerdictAvoid
	}
}

// Policy is the full scoring configuration.
type Policy struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"verdict_thresholds"`

	// ClampCeiling caps the overall score when a critical incident
	// falls inside the recency window. A hard safety clamp, not a
	// weighted term.
	ClampCeiling float64 `yaml:"critical_clamp_ceiling"`

	// CriticalLossUSD is the loss bound above which an incident is
	// graded critical.
	CriticalLossUSD float64 `yaml:"critical_loss_usd"`

	// RecencyWindowDays bounds how far back incidents keep their full
	// weight (and the clamp applies).
	RecencyWindowDays int `yaml:"incident_recency_days"`
}

// DefaultPolicy returns the documented scoring defaults: security and
// TVL health dominate, a critical incident within two years caps the
// score at 4.
func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			TVLHealth:       0.35,
			Security:        0.30,
			Funding:         0.20,
			Diversification: 0.15,
		},
		Thresholds: Thresholds{
			Strong:   8.0,
			Moderate: 5.0,
			Weak:     2.0,
		},
		ClampCeiling:      4.0,
		CriticalLossUSD:   50e6,
		RecencyWindowDays: 730,
	}
}

func (p Policy) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	if p.ClampCeiling < 0 || p.ClampCeiling > 10 {
		return fmt.Errorf("critical_clamp_ceiling must be within [0,10], got %.1f", p.ClampCeiling)
	}
	if p.CriticalLossUSD <= 0 {
		return fmt.Errorf("critical_loss_usd must be positive, got %.0f", p.CriticalLossUSD)
	}
	if p.RecencyWindowDays <= 0 {
		return fmt.Errorf("incident_recency_days must be positive, got %d", p.RecencyWindowDays)
	}
	return nil
}
