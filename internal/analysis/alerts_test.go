package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/domain/intel"
)

func TestEvaluateAlerts(t *testing.T) {
	t.Run("critical update and high-value opportunity fire in rule order", func(t *testing.T) {
		report := &RunReport{
			Run: &intel.AnalysisRun{Status: intel.RunStatusCompleted},
			Updates: []intel.CompetitorUpdate{
				{CompanyName: "Acme AI", ImpactLevel: intel.ImpactCritical, Description: "Acquired a chip startup"},
			},
			Opportunities: []intel.Opportunity{
				{Title: "Edge inference suite", Score: 0.95, Priority: intel.ImpactHigh},
			},
		}

		alerts := EvaluateAlerts(report)
		require.Len(t, alerts, 2)

		assert.Equal(t, "Critical Competitive Threat: Acme AI", alerts[0].Title)
		assert.Equal(t, intel.ImpactCritical, alerts[0].Impact)
		assert.Equal(t, "Competitive Intelligence", alerts[0].Source)

		assert.Equal(t, "High-Value Opportunity: Edge inference suite", alerts[1].Title)
		assert.Equal(t, intel.ImpactHigh, alerts[1].Impact)
		assert.Equal(t, "Strategic Analysis", alerts[1].Source)
	})

	t.Run("high impact update fires alongside critical", func(t *testing.T) {
		report := &RunReport{
			Run: &intel.AnalysisRun{Status: intel.RunStatusCompleted},
			Updates: []intel.CompetitorUpdate{
				{CompanyName: "First", ImpactLevel: intel.ImpactHigh},
				{CompanyName: "Second", ImpactLevel: intel.ImpactCritical},
			},
		}

		alerts := EvaluateAlerts(report)
		require.Len(t, alerts, 2)
		assert.Equal(t, "Critical Competitive Threat: First", alerts[0].Title)
		assert.Equal(t, "Critical Competitive Threat: Second", alerts[1].Title)
	})

	t.Run("medium impact updates do not alert", func(t *testing.T) {
		report := &RunReport{
			Run: &intel.AnalysisRun{Status: intel.RunStatusCompleted},
			Updates: []intel.CompetitorUpdate{
				{CompanyName: "Quiet Corp", ImpactLevel: intel.ImpactMedium},
			},
		}
		assert.Empty(t, EvaluateAlerts(report))
	})

	t.Run("opportunity needs both score and priority", func(t *testing.T) {
		report := &RunReport{
			Run: &intel.AnalysisRun{Status: intel.RunStatusCompleted},
			Opportunities: []intel.Opportunity{
				{Title: "Scored but medium", Score: 0.95, Priority: intel.ImpactMedium},
				{Title: "High but below bar", Score: 0.9, Priority: intel.ImpactHigh},
			},
		}
		assert.Empty(t, EvaluateAlerts(report))
	})

	t.Run("failed run alone produces no alert", func(t *testing.T) {
		report := &RunReport{
			Run: &intel.AnalysisRun{Status: intel.RunStatusError},
		}
		assert.Empty(t, EvaluateAlerts(report))
	})
}
