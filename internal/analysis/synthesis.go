package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/adapters/ai"
	"sentinel/internal/domain/intel"
	"sentinel/internal/metrics"
	"sentinel/pkg/logger"
)

const synthesisSystemPrompt = `You are a strategic analyst. You synthesize
market, competitor and trend intelligence into strategic insights and identify
concrete, scored business opportunities. Respond only with JSON.`

type synthesisPayload struct {
	ExecutiveSummary  string   `json:"executive_summary"`
	StrategicInsights []string `json:"strategic_insights"`
	Recommendations   []string `json:"recommendations"`
}

type opportunitiesPayload struct {
	Opportunities []opportunityPayload `json:"opportunities"`
}

type opportunityPayload struct {
	Title                    string  `json:"title"`
	Description              string  `json:"description"`
	MarketGap                string  `json:"market_gap"`
	Score                    float64 `json:"score"`
	Priority                 string  `json:"priority"`
	PotentialRevenue         string  `json:"potential_revenue"`
	ImplementationComplexity string  `json:"implementation_complexity"`
	TimeToMarket             string  `json:"time_to_market"`
}

// SynthesisStage combines the three upstream stage outputs into strategic
// insights and scored opportunities. Its two completion calls are a strict
// dependency chain: opportunity identification consumes the synthesis output.
type SynthesisStage struct {
	completion ai.CompletionClient
	store      intel.Store
	lookback   time.Duration
	log        *logger.Logger
}

// NewSynthesisStage creates the strategic synthesis stage. The lookback
// window bounds the prior-opportunity context used to avoid duplicates.
func NewSynthesisStage(completion ai.CompletionClient, store intel.Store, lookback time.Duration) *SynthesisStage {
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	return &SynthesisStage{
		completion: completion,
		store:      store,
		lookback:   lookback,
		log:        logger.Get().With("stage", "synthesis"),
	}
}

// Name returns the stage identifier
func (s *SynthesisStage) Name() string { return "synthesis" }

// Run synthesizes upstream results and persists identified opportunities
func (s *SynthesisStage) Run(ctx context.Context, sc StageContext) StageResult {
	start := time.Now()
	result := s.run(ctx, sc)
	result.Duration = time.Since(start)
	metrics.RecordStage(s.Name(), result.Duration, result.Persisted, result.Skipped, result.Err != nil)
	return result
}

func (s *SynthesisStage) run(ctx context.Context, sc StageContext) StageResult {
	synthesis, err := s.synthesize(ctx, sc)
	if err != nil {
		s.log.Errorw("Intelligence synthesis failed", "error", err)
		return emptyResult(s.Name(), err)
	}

	opportunities, err := s.identifyOpportunities(ctx, synthesis)
	if err != nil {
		// The synthesis text itself is still usable for the run summary
		s.log.Errorw("Opportunity identification failed", "error", err)
		return StageResult{
			Stage:       s.Name(),
			Digest:      synthesis.ExecutiveSummary,
			KeyInsights: append(synthesis.StrategicInsights, synthesis.Recommendations...),
			Err:         err,
		}
	}

	persisted, skipped := s.persistOpportunities(ctx, opportunities)

	return StageResult{
		Stage:       s.Name(),
		Persisted:   persisted,
		Skipped:     skipped,
		Digest:      synthesis.ExecutiveSummary,
		KeyInsights: append(synthesis.StrategicInsights, synthesis.Recommendations...),
	}
}

func (s *SynthesisStage) synthesize(ctx context.Context, sc StageContext) (*synthesisPayload, error) {
	prompt := fmt.Sprintf(`Synthesize the following intelligence into strategic analysis:

Market Intelligence (%d findings persisted):
%s

Competitor Intelligence (%d updates persisted):
%s

Trend Analysis (%d trends persisted):
%s

Respond in JSON format:
{
  "executive_summary": "Concise strategic overview",
  "strategic_insights": ["Cross-cutting insights from combining the inputs"],
  "recommendations": ["Prioritized strategic recommendations"]
}`,
		sc.Market.Persisted, digestOrNone(sc.Market),
		sc.Competitor.Persisted, digestOrNone(sc.Competitor),
		sc.Trend.Persisted, digestOrNone(sc.Trend),
	)

	response, err := s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, err
	}

	var payload synthesisPayload
	if err := decodeResponse(response, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *SynthesisStage) identifyOpportunities(ctx context.Context, synthesis *synthesisPayload) ([]opportunityPayload, error) {
	prompt := fmt.Sprintf(`Based on the strategic analysis, identify specific, actionable business opportunities:

Executive Summary:
%s

Strategic Insights:
- %s

Recommendations:
- %s

Opportunities already on record (do not repeat these):
%s

Respond in JSON format:
{
  "opportunities": [
    {
      "title": "Opportunity title",
      "description": "Detailed description of the opportunity",
      "market_gap": "The unmet need this addresses",
      "score": 0.8,
      "priority": "low|medium|high|critical",
      "potential_revenue": "Revenue estimate or range",
      "implementation_complexity": "low|medium|high",
      "time_to_market": "Estimated time to market"
    }
  ]
}
Score opportunities from 0.0 to 1.0 by strategic value and feasibility.`,
		synthesis.ExecutiveSummary,
		strings.Join(synthesis.StrategicInsights, "\n- "),
		strings.Join(synthesis.Recommendations, "\n- "),
		s.priorOpportunities(ctx),
	)

	response, err := s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, err
	}

	var payload opportunitiesPayload
	if err := decodeResponse(response, &payload); err != nil {
		return nil, err
	}
	return payload.Opportunities, nil
}

// priorOpportunities lists opportunity titles persisted within the lookback
// window. A read failure degrades to an empty section.
func (s *SynthesisStage) priorOpportunities(ctx context.Context) string {
	since := time.Now().UTC().Add(-s.lookback)
	opportunities, err := s.store.OpportunitiesSince(ctx, since, 20)
	if err != nil {
		s.log.Warnw("Failed to load prior opportunities", "error", err)
		return "(none on record)"
	}
	if len(opportunities) == 0 {
		return "(none on record)"
	}

	lines := make([]string, 0, len(opportunities))
	for _, o := range opportunities {
		lines = append(lines, "- "+o.Title)
	}
	return strings.Join(lines, "\n")
}

func (s *SynthesisStage) persistOpportunities(ctx context.Context, items []opportunityPayload) (persisted, skipped int) {
	for _, item := range items {
		opportunity := &intel.Opportunity{
			Title:                    item.Title,
			Description:              item.Description,
			MarketGap:                item.MarketGap,
			Score:                    item.Score,
			Priority:                 intel.Impact(strings.TrimSpace(item.Priority)),
			PotentialRevenue:         item.PotentialRevenue,
			ImplementationComplexity: item.ImplementationComplexity,
			TimeToMarket:             item.TimeToMarket,
		}

		if err := opportunity.Validate(); err != nil {
			s.log.Warnw("Dropping invalid opportunity", "title", item.Title, "error", err)
			skipped++
			continue
		}

		if err := s.store.InsertOpportunity(ctx, opportunity); err != nil {
			s.log.Errorw("Failed to persist opportunity", "title", opportunity.Title, "error", err)
			skipped++
			continue
		}
		persisted++
	}
	return persisted, skipped
}

func digestOrNone(r *StageResult) string {
	if r == nil {
		return "(not available)"
	}
	if r.Err != nil {
		return fmt.Sprintf("(stage degraded: %v)", r.Err)
	}
	if r.Digest == "" {
		return "(no summary produced)"
	}
	return r.Digest
}
