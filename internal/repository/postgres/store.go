package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sentinel/internal/domain/intel"
	"sentinel/pkg/errors"
)

// Store implements intel.Store backed by PostgreSQL
type Store struct {
	db *sqlx.DB
}

// NewStore creates a PostgreSQL-backed intelligence store
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Compile-time check
var _ intel.Store = (*Store)(nil)

// InsertFinding appends a market finding
func (s *Store) InsertFinding(ctx context.Context, finding *intel.MarketFinding) error {
	if finding.ID == uuid.Nil {
		finding.ID = uuid.New()
	}
	if finding.CreatedAt.IsZero() {
		finding.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO market_findings (
			id, date, category, title, summary, content,
			relevance_score, source_url, created_at
		) VALUES (
			:id, :date, :category, :title, :summary, :content,
			:relevance_score, :source_url, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, finding); err != nil {
		return errors.Wrap(err, "failed to insert market finding")
	}
	return nil
}

// InsertCompetitorUpdate appends a competitor update
func (s *Store) InsertCompetitorUpdate(ctx context.Context, update *intel.CompetitorUpdate) error {
	if update.ID == uuid.Nil {
		update.ID = uuid.New()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO competitor_updates (
			id, company_name, update_type, description, impact_level,
			source_url, detected_date, created_at
		) VALUES (
			:id, :company_name, :update_type, :description, :impact_level,
			:source_url, :detected_date, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, update); err != nil {
		return errors.Wrap(err, "failed to insert competitor update")
	}
	return nil
}

// InsertOpportunity appends an opportunity
func (s *Store) InsertOpportunity(ctx context.Context, opportunity *intel.Opportunity) error {
	if opportunity.ID == uuid.Nil {
		opportunity.ID = uuid.New()
	}
	if opportunity.CreatedAt.IsZero() {
		opportunity.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO opportunities (
			id, title, description, market_gap, score, priority,
			potential_revenue, implementation_complexity, time_to_market, created_at
		) VALUES (
			:id, :title, :description, :market_gap, :score, :priority,
			:potential_revenue, :implementation_complexity, :time_to_market, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, opportunity); err != nil {
		return errors.Wrap(err, "failed to insert opportunity")
	}
	return nil
}

// InsertTrend appends a trend
func (s *Store) InsertTrend(ctx context.Context, trend *intel.Trend) error {
	if trend.ID == uuid.Nil {
		trend.ID = uuid.New()
	}
	if trend.CreatedAt.IsZero() {
		trend.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO trends (
			id, trend_name, category, momentum_score, evidence,
			first_detected, prediction, created_at
		) VALUES (
			:id, :trend_name, :category, :momentum_score, :evidence,
			:first_detected, :prediction, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, trend); err != nil {
		return errors.Wrap(err, "failed to insert trend")
	}
	return nil
}

// InsertRun appends a run summary. A unique index on run_date enforces the
// one-run-per-day guarantee at the storage layer.
func (s *Store) InsertRun(ctx context.Context, run *intel.AnalysisRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO analysis_runs (
			id, run_date, findings_count, opportunities_identified,
			key_insights, recommendations, execution_time_seconds,
			status, stage_errors, created_at
		) VALUES (
			:id, :run_date, :findings_count, :opportunities_identified,
			:key_insights, :recommendations, :execution_time_seconds,
			:status, :stage_errors, :created_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return errors.Wrap(err, "failed to insert analysis run")
	}
	return nil
}

// FindingsSince returns findings created after the given time, newest first
func (s *Store) FindingsSince(ctx context.Context, since time.Time, limit int) ([]intel.MarketFinding, error) {
	query := `
		SELECT * FROM market_findings
		WHERE created_at >= $1
		ORDER BY relevance_score DESC, created_at DESC
		LIMIT $2`

	var findings []intel.MarketFinding
	if err := s.db.SelectContext(ctx, &findings, query, since, limit); err != nil {
		return nil, errors.Wrap(err, "failed to query market findings")
	}
	return findings, nil
}

// CompetitorUpdatesSince returns competitor updates created after the given time
func (s *Store) CompetitorUpdatesSince(ctx context.Context, since time.Time, limit int) ([]intel.CompetitorUpdate, error) {
	query := `
		SELECT * FROM competitor_updates
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`

	var updates []intel.CompetitorUpdate
	if err := s.db.SelectContext(ctx, &updates, query, since, limit); err != nil {
		return nil, errors.Wrap(err, "failed to query competitor updates")
	}
	return updates, nil
}

// TrendsWithMomentum returns trends at or above a momentum threshold
func (s *Store) TrendsWithMomentum(ctx context.Context, minMomentum float64, since time.Time, limit int) ([]intel.Trend, error) {
	query := `
		SELECT * FROM trends
		WHERE momentum_score >= $1 AND created_at >= $2
		ORDER BY momentum_score DESC
		LIMIT $3`

	var trends []intel.Trend
	if err := s.db.SelectContext(ctx, &trends, query, minMomentum, since, limit); err != nil {
		return nil, errors.Wrap(err, "failed to query trends")
	}
	return trends, nil
}

// OpportunitiesSince returns opportunities created after the given time,
// highest score first
func (s *Store) OpportunitiesSince(ctx context.Context, since time.Time, limit int) ([]intel.Opportunity, error) {
	query := `
		SELECT * FROM opportunities
		WHERE created_at >= $1
		ORDER BY score DESC
		LIMIT $2`

	var opportunities []intel.Opportunity
	if err := s.db.SelectContext(ctx, &opportunities, query, since, limit); err != nil {
		return nil, errors.Wrap(err, "failed to query opportunities")
	}
	return opportunities, nil
}

// TopOpportunities returns the highest-scoring opportunities
func (s *Store) TopOpportunities(ctx context.Context, minScore float64, limit int) ([]intel.Opportunity, error) {
	query := `
		SELECT * FROM opportunities
		WHERE score >= $1
		ORDER BY score DESC
		LIMIT $2`

	var opportunities []intel.Opportunity
	if err := s.db.SelectContext(ctx, &opportunities, query, minScore, limit); err != nil {
		return nil, errors.Wrap(err, "failed to query opportunities")
	}
	return opportunities, nil
}

// RunsSince returns run summaries after the given time, newest first
func (s *Store) RunsSince(ctx context.Context, since time.Time) ([]intel.AnalysisRun, error) {
	query := `
		SELECT * FROM analysis_runs
		WHERE run_date >= $1
		ORDER BY run_date DESC`

	var runs []intel.AnalysisRun
	if err := s.db.SelectContext(ctx, &runs, query, since); err != nil {
		return nil, errors.Wrap(err, "failed to query analysis runs")
	}
	return runs, nil
}

// RunExists reports whether a run summary already exists for the given date
func (s *Store) RunExists(ctx context.Context, runDate time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM analysis_runs WHERE run_date::date = $1::date)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, runDate); err != nil {
		return false, errors.Wrap(err, "failed to check run existence")
	}
	return exists, nil
}

// PurgeOlderThan deletes records created before the cutoff across all record
// tables except run summaries, which are kept as history. Returns the total
// number of rows removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tables := []string{"market_findings", "competitor_updates", "opportunities", "trends"}

	var total int64
	for _, table := range tables {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < $1`, cutoff)
		if err != nil {
			return total, errors.Wrapf(err, "failed to purge %s", table)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, errors.Wrapf(err, "failed to count purged rows for %s", table)
		}
		total += affected
	}
	return total, nil
}
