package analysis

import (
	"time"

	"sentinel/internal/domain/intel"
)

// RunReport is the full outcome of one daily pipeline run
type RunReport struct {
	Run           *intel.AnalysisRun
	Stages        []StageResult
	Updates       []intel.CompetitorUpdate
	Opportunities []intel.Opportunity
	Alerts        []intel.Alert
	ExecutionTime time.Duration

	// PersistErr is set when the run record could not be written. The
	// report and its notifications are still delivered.
	PersistErr error
}

// WeeklyReport aggregates persisted records over a trailing window without
// re-running the pipeline
type WeeklyReport struct {
	Period        time.Duration
	Runs          []intel.AnalysisRun
	Findings      []intel.MarketFinding
	Updates       []intel.CompetitorUpdate
	Trends        []intel.Trend
	Opportunities []intel.Opportunity
	Summary       *Summary
	Briefing      string
	GeneratedAt   time.Time
}

// QuickReport is the outcome of an ad-hoc topic analysis. Nothing is
// persisted.
type QuickReport struct {
	Topic            string
	MarketAnalysis   string
	TrendConvergence string
	GeneratedAt      time.Time
}

// Summary is a point-in-time aggregate of stored intelligence over a
// trailing window
type Summary struct {
	Window             time.Duration
	FindingsCount      int
	UpdatesCount       int
	TrendsCount        int
	CategoryBreakdown  map[intel.Category]int
	CriticalUpdates    int
	HighMomentumTrends int
	TopOpportunities   []intel.Opportunity
	RecentRuns         []intel.AnalysisRun
}
