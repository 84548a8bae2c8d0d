package intel

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"sentinel/pkg/errors"
)

// Category classifies market signals
type Category string

const (
	CategoryAIResearch    Category = "ai_research"
	CategoryProductLaunch Category = "product_launch"
	CategoryFunding       Category = "funding"
	CategoryAcquisition   Category = "acquisition"
	CategoryPartnership   Category = "partnership"
	CategoryRegulation    Category = "regulation"
	CategoryTechnology    Category = "technology"
	CategoryMarketTrend   Category = "market_trend"
)

// Valid reports whether the category is one of the known values
func (c Category) Valid() bool {
	switch c {
	case CategoryAIResearch, CategoryProductLaunch, CategoryFunding,
		CategoryAcquisition, CategoryPartnership, CategoryRegulation,
		CategoryTechnology, CategoryMarketTrend:
		return true
	}
	return false
}

// Impact grades severity of competitor updates and opportunity priority
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// Valid reports whether the impact level is one of the known values
func (i Impact) Valid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical:
		return true
	}
	return false
}

// RunStatus is the terminal state of a pipeline run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// Evidence is an arbitrary key/value structure backing a trend, stored as JSONB
type Evidence map[string]interface{}

// Value implements driver.Valuer for database storage
func (e Evidence) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner for database retrieval
func (e *Evidence) Scan(value interface{}) error {
	if value == nil {
		*e = Evidence{}
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return errors.Wrapf(errors.ErrInternal, "unexpected evidence type %T", value)
	}
	return json.Unmarshal(data, e)
}

// MarketFinding is a single market signal produced by the market stage.
// Records are append-only; a finding is never updated after insert.
type MarketFinding struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Date           time.Time `db:"date" json:"date"`
	Category       Category  `db:"category" json:"category"`
	Title          string    `db:"title" json:"title"`
	Summary        string    `db:"summary" json:"summary"`
	Content        string    `db:"content" json:"content"`
	RelevanceScore float64   `db:"relevance_score" json:"relevance_score"`
	SourceURL      string    `db:"source_url" json:"source_url,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Validate checks field constraints. Out-of-range scores are rejected, not
// clamped, so that malformed model output surfaces as skipped items.
func (f *MarketFinding) Validate() error {
	if !f.Category.Valid() {
		return errors.NewValidationError("category", "unknown category", f.Category)
	}
	if f.Title == "" {
		return errors.NewValidationError("title", "must not be empty", f.Title)
	}
	if len(f.Title) > 500 {
		return errors.NewValidationError("title", "exceeds 500 characters", len(f.Title))
	}
	if len(f.Summary) > 2000 {
		return errors.NewValidationError("summary", "exceeds 2000 characters", len(f.Summary))
	}
	if f.RelevanceScore < 0.0 || f.RelevanceScore > 1.0 {
		return errors.NewValidationError("relevance_score", "must be within [0.0, 1.0]", f.RelevanceScore)
	}
	return nil
}

// CompetitorUpdate records a detected move by a tracked competitor
type CompetitorUpdate struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CompanyName  string    `db:"company_name" json:"company_name"`
	UpdateType   Category  `db:"update_type" json:"update_type"`
	Description  string    `db:"description" json:"description"`
	ImpactLevel  Impact    `db:"impact_level" json:"impact_level"`
	SourceURL    string    `db:"source_url" json:"source_url,omitempty"`
	DetectedDate time.Time `db:"detected_date" json:"detected_date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Validate checks field constraints
func (u *CompetitorUpdate) Validate() error {
	if u.CompanyName == "" {
		return errors.NewValidationError("company_name", "must not be empty", u.CompanyName)
	}
	if len(u.CompanyName) > 255 {
		return errors.NewValidationError("company_name", "exceeds 255 characters", len(u.CompanyName))
	}
	if !u.UpdateType.Valid() {
		return errors.NewValidationError("update_type", "unknown category", u.UpdateType)
	}
	if !u.ImpactLevel.Valid() {
		return errors.NewValidationError("impact_level", "unknown impact level", u.ImpactLevel)
	}
	return nil
}

// Opportunity is a strategic opportunity identified by the synthesis stage
type Opportunity struct {
	ID                       uuid.UUID `db:"id" json:"id"`
	Title                    string    `db:"title" json:"title"`
	Description              string    `db:"description" json:"description"`
	MarketGap                string    `db:"market_gap" json:"market_gap"`
	Score                    float64   `db:"score" json:"score"`
	Priority                 Impact    `db:"priority" json:"priority"`
	PotentialRevenue         string    `db:"potential_revenue" json:"potential_revenue,omitempty"`
	ImplementationComplexity string    `db:"implementation_complexity" json:"implementation_complexity,omitempty"`
	TimeToMarket             string    `db:"time_to_market" json:"time_to_market,omitempty"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}

// Validate checks field constraints
func (o *Opportunity) Validate() error {
	if o.Title == "" {
		return errors.NewValidationError("title", "must not be empty", o.Title)
	}
	if len(o.Title) > 255 {
		return errors.NewValidationError("title", "exceeds 255 characters", len(o.Title))
	}
	if o.Score < 0.0 || o.Score > 1.0 {
		return errors.NewValidationError("score", "must be within [0.0, 1.0]", o.Score)
	}
	if !o.Priority.Valid() {
		return errors.NewValidationError("priority", "unknown priority", o.Priority)
	}
	return nil
}

// Trend is a detected market trend with supporting evidence
type Trend struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TrendName     string    `db:"trend_name" json:"trend_name"`
	Category      Category  `db:"category" json:"category"`
	MomentumScore float64   `db:"momentum_score" json:"momentum_score"`
	Evidence      Evidence  `db:"evidence" json:"evidence"`
	FirstDetected time.Time `db:"first_detected" json:"first_detected"`
	Prediction    string    `db:"prediction" json:"prediction,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Validate checks field constraints
func (t *Trend) Validate() error {
	if t.TrendName == "" {
		return errors.NewValidationError("trend_name", "must not be empty", t.TrendName)
	}
	if len(t.TrendName) > 255 {
		return errors.NewValidationError("trend_name", "exceeds 255 characters", len(t.TrendName))
	}
	if !t.Category.Valid() {
		return errors.NewValidationError("category", "unknown category", t.Category)
	}
	if t.MomentumScore < 0.0 || t.MomentumScore > 1.0 {
		return errors.NewValidationError("momentum_score", "must be within [0.0, 1.0]", t.MomentumScore)
	}
	return nil
}

// StringSlice stores a list of strings as a JSONB column
type StringSlice []string

// Value implements driver.Valuer
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return errors.Wrapf(errors.ErrInternal, "unexpected slice type %T", value)
	}
	return json.Unmarshal(data, s)
}

// AnalysisRun is the aggregation root for one full pipeline execution
type AnalysisRun struct {
	ID                      uuid.UUID   `db:"id" json:"id"`
	RunDate                 time.Time   `db:"run_date" json:"run_date"`
	FindingsCount           int         `db:"findings_count" json:"findings_count"`
	OpportunitiesIdentified int         `db:"opportunities_identified" json:"opportunities_identified"`
	KeyInsights             string      `db:"key_insights" json:"key_insights"`
	Recommendations         StringSlice `db:"recommendations" json:"recommendations"`
	ExecutionTimeSeconds    float64     `db:"execution_time_seconds" json:"execution_time_seconds"`
	Status                  RunStatus   `db:"status" json:"status"`
	StageErrors             StringSlice `db:"stage_errors" json:"stage_errors,omitempty"`
	CreatedAt               time.Time   `db:"created_at" json:"created_at"`
}

// Alert is an immediate-notification record produced by alert evaluation.
// Alerts are delivered, not persisted.
type Alert struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
	Source      string `json:"source"`
}
