package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilens/defilens/internal/model"
)

var genAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleRef() model.ProtocolRef {
	return model.ProtocolRef{
		Query:      "aave",
		Slug:       "aave",
		Name:       "AAVE",
		Category:   "Lending",
		Confidence: 1.0,
		MatchKind:  model.MatchAlias,
		IsParent:   true,
		Children: []model.ChildProtocol{
			{Slug: "aave-v2", Name: "AAVE V2"},
			{Slug: "aave-v3", Name: "AAVE V3"},
		},
	}
}

func sampleSnapshot() *model.ProtocolSnapshot {
	fetched := genAt.Add(-10 * time.Minute)
	return &model.ProtocolSnapshot{
		Slug:        "aave",
		Name:        "AAVE",
		Description: "Decentralized lending market",
		Category:    "Lending",
		WindowDays:  30,
		CurrentTVL:  12.4e9,
		TVLSeries: []model.TVLPoint{
			{Date: genAt.AddDate(0, 0, -30), ValueUSD: 11.9e9},
			{Date: genAt, ValueUSD: 12.4e9},
		},
		ChainTVL: map[string]float64{"Ethereum": 10e9, "Polygon": 2.4e9},
		Funding: []model.FundingRound{
			{Date: genAt.AddDate(-4, 0, 0), AmountUSD: 25e6, Round: "Series A", LeadInvestors: []string{"Framework Ventures"}},
		},
		Incidents: []model.Incident{
			{Date: genAt.AddDate(-3, 0, 0), Kind: model.IncidentExploit, LossUSD: 5e6, ReturnedUSD: 1e6},
		},
		HasIncidentData: true,
		FetchedAt:       fetched,
	}
}

func sampleResult() model.ScoreResult {
	return model.ScoreResult{
		Overall: 7.2,
		Verdict: model.VerdictModerate,
		SubScores: map[string]float64{
			model.SubScoreTVLHealth:       8.1,
			model.SubScoreDiversification: 6.0,
			model.SubScoreFunding:         7.0,
			model.SubScoreSecurity:        6.5,
		},
		RedFlags:        []model.RedFlag{{Severity: model.SeverityMedium, Text: "1 security incident(s) on record, $5.0M total losses"}},
		PositiveSignals: []string{"top-tier TVL ($12.4B)"},
		Limitations:     []string{"web research signals unavailable; audit and sentiment coverage not assessed"},
	}
}

func TestAssemble_SectionsPopulated(t *testing.T) {
	r := Assemble(sampleRef(), sampleSnapshot(), sampleResult(), genAt)

	require.NotEmpty(t, r.ID)
	assert.Equal(t, genAt, r.GeneratedAt)

	assert.Equal(t, "AAVE", r.Metadata.ProtocolName)
	assert.Equal(t, "aave", r.Metadata.Slug)
	assert.Equal(t, string(model.MatchAlias), r.Metadata.MatchKind)
	assert.True(t, r.Metadata.IsParent)
	assert.Equal(t, []string{"AAVE V2", "AAVE V3"}, r.Metadata.ChildProtocols)

	assert.Equal(t, 12.4e9, r.TVL.CurrentUSD)
	assert.Equal(t, 30, r.TVL.WindowDays)
	assert.Len(t, r.TVL.History, 2)

	assert.Equal(t, []string{"Ethereum", "Polygon"}, r.Chains.Deployed)

	assert.Equal(t, 25e6, r.Funding.TotalRaisedUSD)

	assert.True(t, r.Security.IncidentDataAvailable)
	assert.Equal(t, 1, r.Security.TotalIncidents)
	assert.Equal(t, 5e6, r.Security.TotalLossUSD)
	assert.Equal(t, 1e6, r.Security.TotalReturnedUSD)

	assert.Equal(t, 7.2, r.Assessment.Overall)
	assert.Equal(t, model.VerdictModerate, r.Assessment.Verdict)
	assert.Equal(t, "10m0s", r.Assessment.DataAge)
}

func TestAssemble_FreshIDPerReport(t *testing.T) {
	a := Assemble(sampleRef(), sampleSnapshot(), sampleResult(), genAt)
	b := Assemble(sampleRef(), sampleSnapshot(), sampleResult(), genAt)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAssemble_UnknownCategory(t *testing.T) {
	snap := sampleSnapshot()
	snap.Category = ""

	r := Assemble(sampleRef(), snap, sampleResult(), genAt)
	assert.Equal(t, "Unknown", r.Metadata.Category)
}

func TestRenderMarkdown(t *testing.T) {
	r := Assemble(sampleRef(), sampleSnapshot(), sampleResult(), genAt)
	md := RenderMarkdown(r)

	assert.True(t, strings.HasPrefix(md, "# "), "report starts with a title heading")
	assert.Contains(t, md, "AAVE")
	assert.Contains(t, md, "12,400,000,000")
	assert.Contains(t, md, "Ethereum")
	assert.Contains(t, md, "7.2")
	assert.Contains(t, md, "MODERATE")
	assert.Contains(t, md, "top-tier TVL")
	assert.Contains(t, md, "security incident")
	assert.Contains(t, md, "web research signals unavailable")
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	r := Assemble(sampleRef(), sampleSnapshot(), sampleResult(), genAt)

	first := RenderMarkdown(r)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, RenderMarkdown(r), "rendering the same report must be stable")
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "aave_2025-03-09.md", Filename("aave", at, "md"))
	assert.Equal(t, "uniswap-v3_2025-03-09.json", Filename("uniswap-v3", at, "json"))

	// Filename depends on the UTC date, not the local zone.
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "aave_2025-03-09.md", Filename("aave", at.In(ny), "md"))
}
