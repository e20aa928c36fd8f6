// Package report arranges resolver, fetcher, and scoring output into
// the five canonical report sections. The assembler consumes only the
// ProtocolRef, ProtocolSnapshot, and ScoreResult values handed to it;
// it never reaches into the cache or network layer.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/defilens/defilens/internal/model"
)

// Report is the finished due-diligence report.
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Metadata Metadata        `json:"metadata"`
	TVL      TVLSection      `json:"tvl"`
	Chains   ChainsSection   `json:"chains"`
	Funding  FundingSection  `json:"funding"`
	Security SecuritySection `json:"security"`

	Assessment Assessment `json:"assessment"`
}

type Metadata struct {
	ProtocolName   string    `json:"protocol_name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description,omitempty"`
	URL            string    `json:"url,omitempty"`
	Category       string    `json:"category"`
	MatchKind      string    `json:"match_kind"`
	MatchedQuery   string    `json:"matched_query"`
	Confidence     float64   `json:"confidence"`
	IsParent       bool      `json:"is_parent_protocol"`
	ChildProtocols []string  `json:"child_protocols,omitempty"`
	DataFetchedAt  time.Time `json:"data_fetched_at"`
}

type TVLSection struct {
	CurrentUSD float64          `json:"current_tvl_usd"`
	WindowDays int              `json:"window_days"`
	History    []model.TVLPoint `json:"history"`
}

type ChainsSection struct {
	Deployed []string           `json:"deployed_chains"`
	ChainTVL map[string]float64 `json:"chain_tvl,omitempty"`
}

type FundingSection struct {
	TotalRaisedUSD float64              `json:"total_raised_usd"`
	Rounds         []model.FundingRound `json:"rounds,omitempty"`
}

type SecuritySection struct {
	IncidentDataAvailable bool             `json:"incident_data_available"`
	TotalIncidents        int              `json:"total_incidents"`
	TotalLossUSD          float64          `json:"total_loss_usd"`
	TotalReturnedUSD      float64          `json:"total_returned_usd"`
	Incidents             []model.Incident `json:"incidents,omitempty"`
	Hallmarks             []model.Hallmark `json:"hallmarks,omitempty"`
}

type Assessment struct {
	Overall         float64            `json:"overall_score"`
	Verdict         model.Verdict      `json:"verdict"`
	SubScores       map[string]float64 `json:"sub_scores"`
	RedFlags        []model.RedFlag    `json:"red_flags"`
	PositiveSignals []string           `json:"positive_signals"`
	Limitations     []string           `json:"limitations"`
	DataAge         string             `json:"data_age"`
}

// Assemble builds the report. GeneratedAt is passed in rather than
// read from the clock so report naming stays under the caller's
// control.
func Assemble(ref model.ProtocolRef, snap *model.ProtocolSnapshot, result model.ScoreResult, generatedAt time.Time) *Report {
	var returned float64
	for _, inc := range snap.Incidents {
		returned += inc.ReturnedUSD
	}

	return &Report{
		ID:          uuid.NewString(),
		GeneratedAt: generatedAt,
		Metadata: Metadata{
			ProtocolName:   snap.Name,
			Slug:           snap.Slug,
			Description:    snap.Description,
			URL:            snap.URL,
			Category:       categoryOrUnknown(snap.Category),
			MatchKind:      string(ref.MatchKind),
			MatchedQuery:   ref.Query,
			Confidence:     ref.Confidence,
			IsParent:       ref.IsParent,
			ChildProtocols: ref.ChildNames(),
			DataFetchedAt:  snap.FetchedAt,
		},
		TVL: TVLSection{
			CurrentUSD: snap.CurrentTVL,
			WindowDays: snap.WindowDays,
			History:    snap.TVLSeries,
		},
		Chains: ChainsSection{
			Deployed: snap.Chains(),
			ChainTVL: snap.ChainTVL,
		},
		Funding: FundingSection{
			TotalRaisedUSD: snap.TotalRaisedUSD(),
			Rounds:         snap.Funding,
		},
		Security: SecuritySection{
			IncidentDataAvailable: snap.HasIncidentData,
			TotalIncidents:        len(snap.Incidents),
			TotalLossUSD:          snap.TotalLossUSD(),
			TotalReturnedUSD:      returned,
			Incidents:             snap.Incidents,
			Hallmarks:             snap.Hallmarks,
		},
		Assessment: Assessment{
			Overall:         result.Overall,
			Verdict:         result.Verdict,
			SubScores:       result.SubScores,
			RedFlags:        result.RedFlags,
			PositiveSignals: result.PositiveSignals,
			Limitations:     result.Limitations,
			DataAge:         generatedAt.Sub(snap.FetchedAt).Round(time.Second).String(),
		},
	}
}

func categoryOrUnknown(category string) string {
	if category == "" {
		return "Unknown"
	}
	return category
}
