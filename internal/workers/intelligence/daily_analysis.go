package intelligence

import (
	"context"
	"time"

	"sentinel/internal/analysis"
	"sentinel/internal/workers"
	"sentinel/pkg/errors"
)

// DailyAnalysisWorker triggers the full pipeline on a daily cadence
type DailyAnalysisWorker struct {
	*workers.BaseWorker
	orchestrator *analysis.Orchestrator
}

// NewDailyAnalysisWorker creates the daily analysis worker
func NewDailyAnalysisWorker(orchestrator *analysis.Orchestrator, interval time.Duration, enabled bool) *DailyAnalysisWorker {
	return &DailyAnalysisWorker{
		BaseWorker:   workers.NewBaseWorker("daily_analysis", interval, enabled),
		orchestrator: orchestrator,
	}
}

// Run executes one daily analysis. A run already executed or executing for
// today is not an error for the worker; the orchestrator's guard is doing
// its job.
func (w *DailyAnalysisWorker) Run(ctx context.Context) error {
	start := time.Now()

	report, err := w.orchestrator.RunDaily(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrRunInProgress) || errors.Is(err, errors.ErrAlreadyExists) {
			w.Log().Infow("Skipping daily analysis", "reason", err)
			w.RecordRun(time.Since(start))
			return nil
		}
		w.RecordError(err, time.Since(start))
		return err
	}

	w.Log().Infow("Daily analysis completed",
		"status", report.Run.Status,
		"findings", report.Run.FindingsCount,
		"opportunities", report.Run.OpportunitiesIdentified,
	)
	w.RecordRun(time.Since(start))
	return nil
}
