package model

import (
	"sort"
	"time"
)

// MatchKind classifies how a user query was resolved to a protocol.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchAlias    MatchKind = "alias"
	MatchFuzzy    MatchKind = "fuzzy"
	MatchNotFound MatchKind = "not_found"
)

// ChildProtocol is a versioned deployment under a parent protocol
// (e.g. "AAVE V3" under the "aave" parent).
type ChildProtocol struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProtocolRef is the outcome of resolving free-form user input against
// the upstream catalog. It is created per resolution call and never
// mutated afterwards.
type ProtocolRef struct {
	Query       string          `json:"query"`
	Slug        string          `json:"slug,omitempty"`
	Name        string          `json:"name,omitempty"`
	Category    string          `json:"category,omitempty"`
	Confidence  float64         `json:"confidence"`
	MatchKind   MatchKind       `json:"match_kind"`
	IsParent    bool            `json:"is_parent"`
	Children    []ChildProtocol `json:"children,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// Found reports whether the resolution produced a usable slug.
func (r ProtocolRef) Found() bool {
	return r.MatchKind != MatchNotFound
}

// ChildNames returns the display names of all child protocols.
func (r ProtocolRef) ChildNames() []string {
	names := make([]string, 0, len(r.Children))
	for _, c := range r.Children {
		names = append(names, c.Name)
	}
	return names
}

// TVLPoint is one day of total value locked.
type TVLPoint struct {
	Date     time.Time `json:"date"`
	ValueUSD float64   `json:"value_usd"`
}

// FundingRound describes one fundraise. Amounts are in USD.
type FundingRound struct {
	Date           time.Time `json:"date"`
	AmountUSD      float64   `json:"amount_usd"`
	Round          string    `json:"round,omitempty"`
	LeadInvestors  []string  `json:"lead_investors,omitempty"`
	OtherInvestors []string  `json:"other_investors,omitempty"`
	ValuationUSD   float64   `json:"valuation_usd,omitempty"`
	Source         string    `json:"source,omitempty"`
}

// IncidentKind classifies a recorded security incident.
type IncidentKind string

const (
	IncidentHack       IncidentKind = "hack"
	IncidentExploit    IncidentKind = "exploit"
	IncidentGovernance IncidentKind = "governance"
	IncidentDepeg      IncidentKind = "depeg"
	IncidentOther      IncidentKind = "other"
)

// Incident is a dated security event attributed to the protocol.
// LossUSD of zero means the loss amount is unknown, not that nothing
// was lost.
type Incident struct {
	Date        time.Time    `json:"date"`
	Kind        IncidentKind `json:"kind"`
	LossUSD     float64      `json:"loss_usd,omitempty"`
	ReturnedUSD float64      `json:"returned_usd,omitempty"`
	Chains      []string     `json:"chains,omitempty"`
	Technique   string       `json:"technique,omitempty"`
	Source      string       `json:"source,omitempty"`
}

// Hallmark is a dated notable event from the protocol's timeline.
type Hallmark struct {
	Date  time.Time `json:"date"`
	Event string    `json:"event"`
}

// ProtocolSnapshot is the assembled view of one protocol at one point
// in time. It is built once per report request and treated as a value:
// never mutated after construction.
type ProtocolSnapshot struct {
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Category    string             `json:"category,omitempty"`
	URL         string             `json:"url,omitempty"`
	WindowDays  int                `json:"window_days"`
	TVLSeries   []TVLPoint         `json:"tvl_series"`
	CurrentTVL  float64            `json:"current_tvl_usd"`
	ChainTVL    map[string]float64 `json:"chain_tvl,omitempty"`
	Funding     []FundingRound     `json:"funding,omitempty"`
	Incidents   []Incident         `json:"incidents,omitempty"`
	Hallmarks   []Hallmark         `json:"hallmarks,omitempty"`

	// HasIncidentData distinguishes a clean incident history from the
	// hacks feed being unavailable when the snapshot was assembled.
	HasIncidentData bool `json:"has_incident_data"`

	// FetchedAt is the fetch time of the least-fresh constituent
	// payload, so consumers can disclose data age.
	FetchedAt time.Time `json:"fetched_at"`
}

// Chains returns deployed chain names ordered by TVL descending.
func (s *ProtocolSnapshot) Chains() []string {
	chains := make([]string, 0, len(s.ChainTVL))
	for c := range s.ChainTVL {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool {
		if s.ChainTVL[chains[i]] != s.ChainTVL[chains[j]] {
			return s.ChainTVL[chains[i]] > s.ChainTVL[chains[j]]
		}
		return chains[i] < chains[j]
	})
	return chains
}

// TotalRaisedUSD sums all funding rounds.
func (s *ProtocolSnapshot) TotalRaisedUSD() float64 {
	var total float64
	for _, r := range s.Funding {
		total += r.AmountUSD
	}
	return total
}

// TotalLossUSD sums recorded incident losses.
func (s *ProtocolSnapshot) TotalLossUSD() float64 {
	var total float64
	for _, inc := range s.Incidents {
		total += inc.LossUSD
	}
	return total
}

// ResearchSignals is the optional contribution of the web research
// source. A nil value means the source was unavailable, which the
// scoring engine reports as a limitation rather than a negative
// signal.
type ResearchSignals struct {
	Audits           []string `json:"audits,omitempty"`
	AnalystCoverage  []string `json:"analyst_coverage,omitempty"`
	Sentiment        string   `json:"sentiment,omitempty"`
	ReportedRedFlags []string `json:"reported_red_flags,omitempty"`
}
