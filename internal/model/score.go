package model

// Severity grades a red flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Verdict is the threshold-mapped summary of the overall score.
type Verdict string

const (
	VerdictStrong   Verdict = "strong"
	VerdictModerate Verdict = "moderate"
	VerdictWeak     Verdict = "weak"
	VerdictAvoid    Verdict = "avoid"
)

// RedFlag is a severity-tagged finding that lowers confidence in a
// protocol, distinct from the numeric score.
type RedFlag struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// Sub-score names used as keys in ScoreResult.SubScores.
const (
	SubScoreTVLHealth       = "tvl_health"
	SubScoreDiversification = "diversification"
	SubScoreFunding         = "funding"
	SubScoreSecurity        = "security"
)

// ScoreResult is the scoring engine's verdict on one snapshot.
// Produced once per report and immutable afterwards.
type ScoreResult struct {
	Overall         float64            `json:"overall"`
	Verdict         Verdict            `json:"verdict"`
	SubScores       map[string]float64 `json:"sub_scores"`
	RedFlags        []RedFlag          `json:"red_flags"`
	PositiveSignals []string           `json:"positive_signals"`
	Limitations     []string           `json:"limitations"`
}
