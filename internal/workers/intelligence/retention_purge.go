package intelligence

import (
	"context"
	"time"

	"sentinel/internal/domain/intel"
	"sentinel/internal/workers"
)

// RetentionPurgeWorker removes intelligence records older than the retention
// window. Run summaries are kept as history.
type RetentionPurgeWorker struct {
	*workers.BaseWorker
	store         intel.Store
	retentionDays int
}

// NewRetentionPurgeWorker creates the retention purge worker
func NewRetentionPurgeWorker(store intel.Store, retentionDays int, interval time.Duration, enabled bool) *RetentionPurgeWorker {
	return &RetentionPurgeWorker{
		BaseWorker:    workers.NewBaseWorker("retention_purge", interval, enabled),
		store:         store,
		retentionDays: retentionDays,
	}
}

// Run purges records past the retention cutoff
func (w *RetentionPurgeWorker) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := time.Now().UTC().AddDate(0, 0, -w.retentionDays)

	purged, err := w.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	if purged > 0 {
		w.Log().Infow("Purged expired intelligence records", "rows", purged, "cutoff", cutoff.Format("2006-01-02"))
	}
	w.RecordRun(time.Since(start))
	return nil
}
