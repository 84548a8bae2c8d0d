package intelligence

import (
	"context"
	"time"

	"sentinel/internal/analysis"
	"sentinel/internal/workers"
)

// WeeklyDigestWorker produces the weekly summary from persisted records
type WeeklyDigestWorker struct {
	*workers.BaseWorker
	orchestrator *analysis.Orchestrator
}

// NewWeeklyDigestWorker creates the weekly digest worker
func NewWeeklyDigestWorker(orchestrator *analysis.Orchestrator, interval time.Duration, enabled bool) *WeeklyDigestWorker {
	return &WeeklyDigestWorker{
		BaseWorker:   workers.NewBaseWorker("weekly_digest", interval, enabled),
		orchestrator: orchestrator,
	}
}

// Run generates and delivers one weekly summary
func (w *WeeklyDigestWorker) Run(ctx context.Context) error {
	start := time.Now()

	report, err := w.orchestrator.RunWeekly(ctx)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.Log().Infow("Weekly digest generated",
		"runs", len(report.Runs),
		"findings", len(report.Findings),
		"opportunities", len(report.Opportunities),
	)
	w.RecordRun(time.Since(start))
	return nil
}
