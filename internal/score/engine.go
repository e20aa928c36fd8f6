// Package score turns a protocol snapshot into a risk verdict. The
// engine is a pure function of its inputs: no I/O, no clock reads
// (recency is measured against the snapshot's own fetch time), so the
// same snapshot always scores identically.
package score

import (
	"fmt"
	"math"
	"time"

	"github.com/defilens/defilens/internal/model"
)

// neutralScore is assigned when a sub-signal's source data is absent.
// Missing data is disclosed as a limitation, never treated as a
// negative signal.
const neutralScore = 5.0

// Engine scores snapshots under one validated policy.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy once up front; scoring calls never
// re-validate.
func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring policy: %w", err)
	}
	return &Engine{policy: p}, nil
}

// Score computes the composite risk score for a snapshot. research may
// be nil, which is reported as a limitation.
func (e *Engine) Score(snap *model.ProtocolSnapshot, research *model.ResearchSignals) model.ScoreResult {
	now := snap.FetchedAt
	subs := make(map[string]float64, 4)
	var limitations []string

	if s, ok := tvlHealthScore(snap); ok {
		subs[model.SubScoreTVLHealth] = s
	} else {
		subs[model.SubScoreTVLHealth] = neutralScore
		limitations = append(limitations, "no TVL history available; TVL health scored neutrally")
	}

	if s, ok := diversificationScore(snap); ok {
		subs[model.SubScoreDiversification] = s
	} else {
		subs[model.SubScoreDiversification] = neutralScore
		limitations = append(limitations, "no chain breakdown available; diversification scored neutrally")
	}

	if s, ok := fundingScore(snap, now); ok {
		subs[model.SubScoreFunding] = s
	} else {
		subs[model.SubScoreFunding] = neutralScore
		limitations = append(limitations, "no funding data on file; funding credibility scored neutrally")
	}

	if snap.HasIncidentData {
		subs[model.SubScoreSecurity] = e.securityScore(snap, now)
	} else {
		subs[model.SubScoreSecurity] = neutralScore
		limitations = append(limitations, "incident history unavailable; security scored neutrally")
	}

	if research == nil {
		limitations = append(limitations, "web research signals unavailable; audit and sentiment coverage not assessed")
	}

	w := e.policy.Weights
	overall := clamp10(w.TVLHealth*subs[model.SubScoreTVLHealth] +
		w.Security*subs[model.SubScoreSecurity] +
		w.Funding*subs[model.SubScoreFunding] +
		w.Diversification*subs[model.SubScoreDiversification])

	// Hard safety clamp: a recent critical incident caps the overall
	// score regardless of every other sub-score.
	if e.hasRecentCritical(snap, now) && overall > e.policy.ClampCeiling {
		overall = e.policy.ClampCeiling
	}

	flags, positives := evaluateRules(snap, research, e.policy, now)

	return model.ScoreResult{
		Overall:         overall,
		Verdict:         e.policy.Thresholds.Verdict(overall),
		SubScores:       subs,
		RedFlags:        flags,
		PositiveSignals: positives,
		Limitations:     limitations,
	}
}

// tvlHealthScore blends TVL magnitude (log scale) with the trend over
// the fetched window.
func tvlHealthScore(snap *model.ProtocolSnapshot) (float64, bool) {
	if len(snap.TVLSeries) == 0 {
		return 0, false
	}

	magnitude := clamp10((math.Log10(math.Max(snap.CurrentTVL, 1)) - 4) * 1.6)

	trend := neutralScore
	if change, ok := windowChange(snap.TVLSeries); ok {
		// +-20% over the window spans the full trend range.
		trend = clamp10(5 + change*25)
	}

	return clamp10(0.6*magnitude + 0.4*trend), true
}

// windowChange is the fractional TVL change from the first to the last
// point of the window.
func windowChange(series []model.TVLPoint) (float64, bool) {
	if len(series) < 2 {
		return 0, false
	}
	first := series[0].ValueUSD
	last := series[len(series)-1].ValueUSD
	if first <= 0 {
		return 0, false
	}
	return (last - first) / first, true
}

// diversificationScore rewards chain count and penalizes concentration
// of TVL on the dominant chain.
func diversificationScore(snap *model.ProtocolSnapshot) (float64, bool) {
	n := len(snap.ChainTVL)
	if n == 0 {
		return 0, false
	}

	var base float64
	switch {
	case n >= 4:
		base = 8
	case n == 3:
		base = 6.5
	case n == 2:
		base = 5
	default:
		base = 3
	}

	var total, top float64
	for _, v := range snap.ChainTVL {
		total += v
		if v > top {
			top = v
		}
	}
	if total > 0 && n > 1 {
		switch share := top / total; {
		case share < 0.6:
			base += 2
		case share < 0.8:
			base += 1
		}
	}

	return clamp10(base), true
}

// fundingScore rewards total raised, recency of the latest round, and
// the presence of named lead investors.
func fundingScore(snap *model.ProtocolSnapshot, now time.Time) (float64, bool) {
	if len(snap.Funding) == 0 {
		return 0, false
	}

	score := 3.0

	switch total := snap.TotalRaisedUSD(); {
	case total >= 500e6:
		score += 4
	case total >= 100e6:
		score += 3
	case total >= 10e6:
		score += 2
	case total >= 1e6:
		score += 1
	}

	latest := snap.Funding[len(snap.Funding)-1].Date
	switch age := now.Sub(latest); {
	case age <= 2*365*24*time.Hour:
		score += 2
	case age <= 5*365*24*time.Hour:
		score += 1
	}

	for _, r := range snap.Funding {
		if len(r.LeadInvestors) > 0 {
			score += 1
			break
		}
	}

	return clamp10(score), true
}

// securityScore starts from a clean 9 and deducts per incident by
// severity, with deductions halved once an incident ages out of the
// recency window. A clean history never reaches 10: absence of
// incidents is not proof of safety.
func (e *Engine) securityScore(snap *model.ProtocolSnapshot, now time.Time) float64 {
	score := 9.0
	window := time.Duration(e.policy.RecencyWindowDays) * 24 * time.Hour

	for _, inc := range snap.Incidents {
		var deduction float64
		switch severityForLoss(inc.LossUSD, e.policy) {
		case model.SeverityCritical:
			deduction = 6
		case model.SeverityHigh:
			deduction = 4
		case model.SeverityMedium:
			deduction = 2.5
		default:
			deduction = 1.5
		}
		if now.Sub(inc.Date) > window {
			deduction /= 2
		}
		score -= deduction
	}

	return clamp10(score)
}

func (e *Engine) hasRecentCritical(snap *model.ProtocolSnapshot, now time.Time) bool {
	window := time.Duration(e.policy.RecencyWindowDays) * 24 * time.Hour
	for _, inc := range snap.Incidents {
		if severityForLoss(inc.LossUSD, e.policy) == model.SeverityCritical && now.Sub(inc.Date) <= window {
			return true
		}
	}
	return false
}

// severityForLoss grades an incident by its recorded loss.
func severityForLoss(loss float64, p Policy) model.Severity {
	switch {
	case loss >= p.CriticalLossUSD:
		return model.SeverityCritical
	case loss >= 10e6:
		return model.SeverityHigh
	case loss >= 1e6:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func clamp10(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}
