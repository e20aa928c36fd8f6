package fetcher

import (
	"sort"
	"strings"
	"time"

	"github.com/defilens/defilens/internal/llama"
	"github.com/defilens/defilens/internal/model"
)

// aggregateTVLKeys are upstream chain-breakdown keys that are
// aggregates, not chains, and are excluded from the chain section.
var aggregateTVLKeys = map[string]struct{}{
	"borrowed": {},
	"staking":  {},
	"pool2":    {},
	"vesting":  {},
	"offers":   {},
}

func buildSnapshot(ref model.ProtocolRef, days int, detail *llama.ProtocolDetail, detailAt time.Time, hacks []llama.HackRecord, hacksAt time.Time, hacksOK bool) *model.ProtocolSnapshot {
	snap := &model.ProtocolSnapshot{
		Slug:            ref.Slug,
		Name:            ref.Name,
		Description:     detail.Description,
		Category:        ref.Category,
		URL:             detail.URL,
		WindowDays:      days,
		HasIncidentData: hacksOK,
		FetchedAt:       detailAt,
	}
	if snap.Name == "" {
		snap.Name = detail.Name
	}
	if snap.Category == "" {
		snap.Category = detail.Category
	}
	if hacksOK && hacksAt.Before(detailAt) {
		snap.FetchedAt = hacksAt
	}

	snap.TVLSeries, snap.CurrentTVL = buildTVLSeries(detail.TVL, days)
	snap.ChainTVL = buildChainTVL(detail.CurrentChainTVLs)
	snap.Funding = buildFunding(detail.Raises)
	snap.Hallmarks = buildHallmarks(detail.Hallmarks)
	if hacksOK {
		snap.Incidents = buildIncidents(hacks, ref)
	}

	return snap
}

// buildTVLSeries converts the history and slices it to the last days
// points (the upstream series is daily). Current TVL is the last
// available point regardless of the window.
func buildTVLSeries(entries []llama.TVLEntry, days int) ([]model.TVLPoint, float64) {
	if len(entries) == 0 {
		return nil, 0
	}
	current := entries[len(entries)-1].TotalLiquidityUSD

	if days > 0 && len(entries) > days {
		entries = entries[len(entries)-days:]
	}
	series := make([]model.TVLPoint, 0, len(entries))
	for _, e := range entries {
		series = append(series, model.TVLPoint{
			Date:     time.Unix(e.Date, 0).UTC(),
			ValueUSD: e.TotalLiquidityUSD,
		})
	}
	return series, current
}

// buildChainTVL keeps base chain names only: hyphenated breakdowns
// ("Ethereum-staking") and aggregate keys are dropped.
func buildChainTVL(chainTVLs map[string]float64) map[string]float64 {
	if len(chainTVLs) == 0 {
		return nil
	}
	out := make(map[string]float64)
	for key, value := range chainTVLs {
		if strings.Contains(key, "-") {
			continue
		}
		if _, agg := aggregateTVLKeys[strings.ToLower(key)]; agg {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func buildFunding(raises []llama.Raise) []model.FundingRound {
	rounds := make([]model.FundingRound, 0, len(raises))
	for _, r := range raises {
		rounds = append(rounds, model.FundingRound{
			Date:           time.Unix(r.Date, 0).UTC(),
			AmountUSD:      float64(r.AmountMillions) * 1e6,
			Round:          r.Round,
			LeadInvestors:  r.LeadInvestors,
			OtherInvestors: r.OtherInvestors,
			ValuationUSD:   float64(r.Valuation) * 1e6,
			Source:         r.Source,
		})
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Date.Before(rounds[j].Date) })
	return rounds
}

// buildIncidents filters the global hacks feed down to records naming
// this protocol or one of its child deployments, newest first.
func buildIncidents(hacks []llama.HackRecord, ref model.ProtocolRef) []model.Incident {
	names := map[string]struct{}{strings.ToLower(ref.Name): {}}
	for _, child := range ref.ChildNames() {
		names[strings.ToLower(child)] = struct{}{}
	}

	var incidents []model.Incident
	for _, h := range hacks {
		if _, match := names[strings.ToLower(h.Name)]; !match {
			continue
		}
		incidents = append(incidents, model.Incident{
			Date:        time.Unix(h.Date, 0).UTC(),
			Kind:        classifyIncident(h.Classification, h.Technique),
			LossUSD:     float64(h.AmountUSD),
			ReturnedUSD: float64(h.ReturnedUSD),
			Chains:      h.Chains,
			Technique:   h.Technique,
			Source:      h.Source,
		})
	}
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].Date.After(incidents[j].Date) })
	return incidents
}

// classifyIncident maps the upstream free-text classification onto the
// incident taxonomy. Unrecognized classifications default to Hack,
// which is the conservative reading for a record in the hacks feed.
func classifyIncident(classification, technique string) model.IncidentKind {
	text := strings.ToLower(classification + " " + technique)
	switch {
	case strings.Contains(text, "governance") || strings.Contains(text, "rug"):
		return model.IncidentGovernance
	case strings.Contains(text, "depeg"):
		return model.IncidentDepeg
	case strings.Contains(text, "exploit") || strings.Contains(text, "logic") ||
		strings.Contains(text, "contract") || strings.Contains(text, "oracle"):
		return model.IncidentExploit
	case classification == "" && technique == "":
		return model.IncidentOther
	default:
		return model.IncidentHack
	}
}

func buildHallmarks(entries []llama.HallmarkEntry) []model.Hallmark {
	var out []model.Hallmark
	for _, e := range entries {
		if e.Date == 0 || e.Event == "" {
			continue
		}
		out = append(out, model.Hallmark{
			Date:  time.Unix(e.Date, 0).UTC(),
			Event: e.Event,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
