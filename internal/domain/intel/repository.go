package intel

import (
	"context"
	"time"
)

// Store is the append-only persistence interface for intelligence records.
// Inserts never update existing rows; reads are filtered by time windows.
type Store interface {
	// Writes
	InsertFinding(ctx context.Context, finding *MarketFinding) error
	InsertCompetitorUpdate(ctx context.Context, update *CompetitorUpdate) error
	InsertOpportunity(ctx context.Context, opportunity *Opportunity) error
	InsertTrend(ctx context.Context, trend *Trend) error
	InsertRun(ctx context.Context, run *AnalysisRun) error

	// Reads
	FindingsSince(ctx context.Context, since time.Time, limit int) ([]MarketFinding, error)
	CompetitorUpdatesSince(ctx context.Context, since time.Time, limit int) ([]CompetitorUpdate, error)
	TrendsWithMomentum(ctx context.Context, minMomentum float64, since time.Time, limit int) ([]Trend, error)
	OpportunitiesSince(ctx context.Context, since time.Time, limit int) ([]Opportunity, error)
	TopOpportunities(ctx context.Context, minScore float64, limit int) ([]Opportunity, error)
	RunsSince(ctx context.Context, since time.Time) ([]AnalysisRun, error)
	RunExists(ctx context.Context, runDate time.Time) (bool, error)

	// Maintenance
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
