package score

import (
	"fmt"
	"strings"
	"time"

	"github.com/defilens/defilens/internal/model"
)

// evaluateRules runs the independent red-flag and positive-signal
// checks over the snapshot. Each rule is evaluated once per call and
// contributes at most one entry, so overlapping rules never duplicate
// findings.
func evaluateRules(snap *model.ProtocolSnapshot, research *model.ResearchSignals, p Policy, now time.Time) ([]model.RedFlag, []string) {
	var flags []model.RedFlag
	var positives []string
	window := time.Duration(p.RecencyWindowDays) * 24 * time.Hour

	// Incident rules: the most severe applicable rule fires, never
	// several for the same history.
	switch {
	case !snap.HasIncidentData:
		// Covered by the scoring limitation, not a flag.
	case hasRecentCriticalIncident(snap, p, now):
		worst := worstIncident(snap)
		flags = append(flags, model.RedFlag{
			Severity: model.SeverityCritical,
			Text: fmt.Sprintf("critical security incident on %s ($%.0fM lost)",
				worst.Date.Format("2006-01-02"), worst.LossUSD/1e6),
		})
	case len(snap.Incidents) > 0:
		severity := model.SeverityMedium
		if now.Sub(snap.Incidents[0].Date) <= window {
			severity = model.SeverityHigh
		}
		flags = append(flags, model.RedFlag{
			Severity: severity,
			Text: fmt.Sprintf("%d security incident(s) on record, $%.1fM total losses",
				len(snap.Incidents), snap.TotalLossUSD()/1e6),
		})
	default:
		positives = append(positives, "no security incidents on record")
	}

	if change, ok := windowChange(snap.TVLSeries); ok {
		switch {
		case change <= -0.30:
			flags = append(flags, model.RedFlag{
				Severity: model.SeverityHigh,
				Text:     fmt.Sprintf("TVL declined %.0f%% over the %d-day window", -change*100, snap.WindowDays),
			})
		case change >= 0.10:
			positives = append(positives, fmt.Sprintf("TVL grew %.0f%% over the %d-day window", change*100, snap.WindowDays))
		}
	}

	if len(snap.TVLSeries) > 0 && snap.CurrentTVL < 1e6 {
		flags = append(flags, model.RedFlag{
			Severity: model.SeverityMedium,
			Text:     fmt.Sprintf("very low TVL ($%.0fK)", snap.CurrentTVL/1e3),
		})
	}
	if snap.CurrentTVL >= 1e9 {
		positives = append(positives, fmt.Sprintf("top-tier TVL ($%.1fB)", snap.CurrentTVL/1e9))
	}

	switch chains := len(snap.ChainTVL); {
	case chains == 1:
		flags = append(flags, model.RedFlag{
			Severity: model.SeverityLow,
			Text:     "deployed on a single chain",
		})
	case chains >= 3 && snap.CurrentTVL > 100e6:
		positives = append(positives, fmt.Sprintf("deployed across %d chains with >$100M TVL", chains))
	}

	if total := snap.TotalRaisedUSD(); total >= 100e6 && hasLeadInvestors(snap) {
		positives = append(positives, fmt.Sprintf("institutional backing: $%.0fM raised across %d round(s)",
			total/1e6, len(snap.Funding)))
	}

	if research != nil {
		if len(research.ReportedRedFlags) > 0 {
			flags = append(flags, model.RedFlag{
				Severity: model.SeverityMedium,
				Text:     "external research flags: " + strings.Join(research.ReportedRedFlags, "; "),
			})
		}
		if len(research.Audits) > 0 {
			positives = append(positives, "audits on file: "+strings.Join(research.Audits, ", "))
		}
	}

	return flags, positives
}

func hasRecentCriticalIncident(snap *model.ProtocolSnapshot, p Policy, now time.Time) bool {
	window := time.Duration(p.RecencyWindowDays) * 24 * time.Hour
	for _, inc := range snap.Incidents {
		if severityForLoss(inc.LossUSD, p) == model.SeverityCritical && now.Sub(inc.Date) <= window {
			return true
		}
	}
	return false
}

func worstIncident(snap *model.ProtocolSnapshot) model.Incident {
	worst := snap.Incidents[0]
	for _, inc := range snap.Incidents[1:] {
		if inc.LossUSD > worst.LossUSD {
			worst = inc
		}
	}
	return worst
}

func hasLeadInvestors(snap *model.ProtocolSnapshot) bool {
	for _, r := range snap.Funding {
		if len(r.LeadInvestors) > 0 {
			return true
		}
	}
	return false
}
