package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// RenderMarkdown renders the report for human consumption. The JSON
// output mode bypasses this entirely.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s — Due Diligence Report\n\n", r.Metadata.ProtocolName)
	fmt.Fprintf(&b, "Generated %s · data as of %s · slug `%s`\n\n",
		r.GeneratedAt.Format("2006-01-02 15:04 MST"),
		r.Metadata.DataFetchedAt.Format("2006-01-02 15:04 MST"),
		r.Metadata.Slug)

	fmt.Fprintf(&b, "## Assessment\n\n")
	fmt.Fprintf(&b, "**Score: %.1f / 10 — %s**\n\n", r.Assessment.Overall, strings.ToUpper(string(r.Assessment.Verdict)))
	for _, sub := range []struct{ key, label string }{
		{"tvl_health", "TVL health"},
		{"security", "Security history"},
		{"funding", "Funding credibility"},
		{"diversification", "Diversification"},
	} {
		if v, ok := r.Assessment.SubScores[sub.key]; ok {
			fmt.Fprintf(&b, "- %s: %.1f\n", sub.label, v)
		}
	}
	b.WriteString("\n")

	if len(r.Assessment.RedFlags) > 0 {
		b.WriteString("### Red flags\n\n")
		for _, f := range r.Assessment.RedFlags {
			fmt.Fprintf(&b, "- **[%s]** %s\n", strings.ToUpper(string(f.Severity)), f.Text)
		}
		b.WriteString("\n")
	}
	if len(r.Assessment.PositiveSignals) > 0 {
		b.WriteString("### Positive signals\n\n")
		for _, s := range r.Assessment.PositiveSignals {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(r.Assessment.Limitations) > 0 {
		b.WriteString("### Limitations\n\n")
		for _, l := range r.Assessment.Limitations {
			fmt.Fprintf(&b, "- %s\n", l)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Overview\n\n")
	fmt.Fprintf(&b, "- Category: %s\n", r.Metadata.Category)
	if r.Metadata.URL != "" {
		fmt.Fprintf(&b, "- Website: %s\n", r.Metadata.URL)
	}
	if len(r.Metadata.ChildProtocols) > 0 {
		fmt.Fprintf(&b, "- Deployments: %s\n", strings.Join(r.Metadata.ChildProtocols, ", "))
	}
	if r.Metadata.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Metadata.Description)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## TVL\n\n")
	fmt.Fprintf(&b, "Current TVL: $%s over the last %d days\n\n", humanize.Commaf(r.TVL.CurrentUSD), r.TVL.WindowDays)
	if n := len(r.TVL.History); n > 0 {
		first := r.TVL.History[0]
		last := r.TVL.History[n-1]
		fmt.Fprintf(&b, "Window: $%s (%s) → $%s (%s)\n\n",
			humanize.Commaf(first.ValueUSD), first.Date.Format("2006-01-02"),
			humanize.Commaf(last.ValueUSD), last.Date.Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "## Chains\n\n")
	if len(r.Chains.Deployed) == 0 {
		b.WriteString("No chain breakdown available.\n\n")
	} else {
		for _, chain := range r.Chains.Deployed {
			fmt.Fprintf(&b, "- %s: $%s\n", chain, humanize.Commaf(r.Chains.ChainTVL[chain]))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Funding\n\n")
	if len(r.Funding.Rounds) == 0 {
		b.WriteString("No funding rounds on file.\n\n")
	} else {
		fmt.Fprintf(&b, "Total raised: $%s\n\n", humanize.Commaf(r.Funding.TotalRaisedUSD))
		for _, round := range r.Funding.Rounds {
			fmt.Fprintf(&b, "- %s: %s, $%s", round.Date.Format("2006-01-02"), roundLabel(round.Round), humanize.Commaf(round.AmountUSD))
			if len(round.LeadInvestors) > 0 {
				fmt.Fprintf(&b, " (led by %s)", strings.Join(round.LeadInvestors, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Security\n\n")
	switch {
	case !r.Security.IncidentDataAvailable:
		b.WriteString("Incident history could not be retrieved.\n\n")
	case r.Security.TotalIncidents == 0:
		b.WriteString("No security incidents on record.\n\n")
	default:
		fmt.Fprintf(&b, "%d incident(s), $%s lost, $%s returned\n\n",
			r.Security.TotalIncidents,
			humanize.Commaf(r.Security.TotalLossUSD),
			humanize.Commaf(r.Security.TotalReturnedUSD))
		for _, inc := range r.Security.Incidents {
			fmt.Fprintf(&b, "- %s: %s, $%s lost", inc.Date.Format("2006-01-02"), inc.Kind, humanize.Commaf(inc.LossUSD))
			if inc.Technique != "" {
				fmt.Fprintf(&b, " (%s)", inc.Technique)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(r.Security.Hallmarks) > 0 {
		b.WriteString("### Timeline\n\n")
		for _, h := range r.Security.Hallmarks {
			fmt.Fprintf(&b, "- %s: %s\n", h.Date.Format("2006-01-02"), h.Event)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func roundLabel(round string) string {
	if round == "" {
		return "undisclosed round"
	}
	return round
}
