package analysis

import (
	"fmt"

	"sentinel/internal/domain/intel"
)

// Alert thresholds. An opportunity must clear both the score bar and carry
// high priority to page anyone.
const (
	opportunityAlertScore = 0.9
)

// EvaluateAlerts inspects a run report and returns the alerts it warrants.
// Rules apply in fixed order and are not mutually exclusive. A failed run
// produces no alert by itself; infrastructure problems belong in the digest
// and the logs, not the paging channel.
func EvaluateAlerts(report *RunReport) []intel.Alert {
	alerts := []intel.Alert{}

	for _, update := range report.Updates {
		if update.ImpactLevel == intel.ImpactHigh || update.ImpactLevel == intel.ImpactCritical {
			alerts = append(alerts, intel.Alert{
				Title:       fmt.Sprintf("Critical Competitive Threat: %s", update.CompanyName),
				Description: update.Description,
				Impact:      update.ImpactLevel,
				Source:      "Competitive Intelligence",
			})
		}
	}

	for _, opp := range report.Opportunities {
		if opp.Score > opportunityAlertScore && opp.Priority == intel.ImpactHigh {
			alerts = append(alerts, intel.Alert{
				Title:       fmt.Sprintf("High-Value Opportunity: %s", opp.Title),
				Description: opp.Description,
				Impact:      intel.ImpactHigh,
				Source:      "Strategic Analysis",
			})
		}
	}

	return alerts
}
