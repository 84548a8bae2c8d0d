package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/adapters/ai"
	"sentinel/internal/adapters/search"
	"sentinel/internal/domain/intel"
	"sentinel/internal/metrics"
	"sentinel/pkg/logger"
)

const trendSystemPrompt = `You are a market trend forecasting analyst.
You identify emerging trends from market signals, score their momentum, and
predict their trajectory. Respond only with JSON.`

type trendPayload struct {
	Summary string             `json:"summary"`
	Trends  []trendItemPayload `json:"trends"`
}

type trendItemPayload struct {
	TrendName     string                 `json:"trend_name"`
	Category      string                 `json:"category"`
	MomentumScore float64                `json:"momentum_score"`
	Evidence      map[string]interface{} `json:"evidence"`
	Prediction    string                 `json:"prediction"`
}

// TrendStage detects and scores emerging market trends
type TrendStage struct {
	searcher   search.Client
	completion ai.CompletionClient
	store      intel.Store
	lookback   time.Duration
	log        *logger.Logger
}

// NewTrendStage creates the trend analysis stage. The lookback window bounds
// the historical trend context fed back into analysis.
func NewTrendStage(searcher search.Client, completion ai.CompletionClient, store intel.Store, lookback time.Duration) *TrendStage {
	if lookback <= 0 {
		lookback = 180 * 24 * time.Hour
	}
	return &TrendStage{
		searcher:   searcher,
		completion: completion,
		store:      store,
		lookback:   lookback,
		log:        logger.Get().With("stage", "trend"),
	}
}

// Name returns the stage identifier
func (s *TrendStage) Name() string { return "trend" }

// Run gathers trend indicators across technology, enterprise adoption and
// investment, then extracts scored trends
func (s *TrendStage) Run(ctx context.Context, _ StageContext) StageResult {
	start := time.Now()
	result := s.run(ctx)
	result.Duration = time.Since(start)
	metrics.RecordStage(s.Name(), result.Duration, result.Persisted, result.Skipped, result.Err != nil)
	return result
}

func (s *TrendStage) run(ctx context.Context) StageResult {
	indicators := s.gatherIndicators(ctx)
	if indicators == "" {
		return emptyResult(s.Name(), fmt.Errorf("no trend indicator data available"))
	}

	prompt := fmt.Sprintf(`Identify emerging market trends from the following indicator data:

%s

Previously detected trends (track momentum shifts, avoid duplicates):
%s

Respond in JSON format:
{
  "summary": "Overall trend landscape summary",
  "trends": [
    {
      "trend_name": "Name of the trend",
      "category": "ai_research|product_launch|funding|acquisition|partnership|regulation|technology|market_trend",
      "momentum_score": 0.75,
      "evidence": {"signal": "supporting data point"},
      "prediction": "Expected trajectory over the next 6-12 months"
    }
  ]
}
Score momentum from 0.0 (fading) to 1.0 (accelerating rapidly).`, indicators, s.priorTrends(ctx))

	response, err := s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: trendSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		s.log.Errorw("Completion call failed", "error", err)
		return emptyResult(s.Name(), err)
	}

	var payload trendPayload
	if err := decodeResponse(response, &payload); err != nil {
		s.log.Errorw("Failed to parse trend analysis", "error", err)
		return emptyResult(s.Name(), err)
	}

	persisted, skipped := s.persistTrends(ctx, payload.Trends)

	return StageResult{
		Stage:     s.Name(),
		Persisted: persisted,
		Skipped:   skipped,
		Digest:    payload.Summary,
	}
}

func (s *TrendStage) gatherIndicators(ctx context.Context) string {
	queries := []struct {
		label string
		query search.Query
	}{
		{"AI Technology", search.Query{
			Text:    "AI technology trends emerging artificial intelligence",
			Count:   10,
			Recency: search.RecencyMonth,
			Kind:    search.KindNews,
		}},
		{"Enterprise Adoption", search.Query{
			Text:    "enterprise AI adoption trends business automation",
			Count:   10,
			Recency: search.RecencyMonth,
			Kind:    search.KindSearch,
		}},
		{"Investment", search.Query{
			Text:    "AI startup investment venture capital funding trends",
			Count:   10,
			Recency: search.RecencyMonth,
			Kind:    search.KindNews,
		}},
		{"Regulation", search.Query{
			Text:    "AI regulation policy governance compliance developments",
			Count:   10,
			Recency: search.RecencyMonth,
			Kind:    search.KindNews,
		}},
	}

	var sections []string
	for _, q := range queries {
		results, err := s.searcher.Search(ctx, q.query)
		if err != nil {
			s.log.Warnw("Indicator search failed", "label", q.label, "error", err)
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n%s", q.label, results))
	}
	return strings.Join(sections, "\n\n")
}

// priorTrends summarizes trends already on record within the lookback window.
// A read failure degrades to an empty section, not a stage error.
func (s *TrendStage) priorTrends(ctx context.Context) string {
	since := time.Now().UTC().Add(-s.lookback)
	trends, err := s.store.TrendsWithMomentum(ctx, 0.5, since, 10)
	if err != nil {
		s.log.Warnw("Failed to load prior trends", "error", err)
		return "(none on record)"
	}
	if len(trends) == 0 {
		return "(none on record)"
	}

	lines := make([]string, 0, len(trends))
	for _, t := range trends {
		lines = append(lines, fmt.Sprintf("- %s (momentum %.2f)", t.TrendName, t.MomentumScore))
	}
	return strings.Join(lines, "\n")
}

func (s *TrendStage) persistTrends(ctx context.Context, items []trendItemPayload) (persisted, skipped int) {
	now := time.Now().UTC()

	for _, item := range items {
		trend := &intel.Trend{
			TrendName:     item.TrendName,
			Category:      intel.Category(strings.TrimSpace(item.Category)),
			MomentumScore: item.MomentumScore,
			Evidence:      intel.Evidence(item.Evidence),
			FirstDetected: now,
			Prediction:    item.Prediction,
		}

		if err := trend.Validate(); err != nil {
			s.log.Warnw("Dropping invalid trend", "trend", item.TrendName, "error", err)
			skipped++
			continue
		}

		if err := s.store.InsertTrend(ctx, trend); err != nil {
			s.log.Errorw("Failed to persist trend", "trend", trend.TrendName, "error", err)
			skipped++
			continue
		}
		persisted++
	}
	return persisted, skipped
}

// AnalyzeConvergence runs a non-persisting lookup for converging trends
// around a topic. Used by quick analysis.
func (s *TrendStage) AnalyzeConvergence(ctx context.Context, topic string) (string, error) {
	results, err := s.searcher.Search(ctx, search.Query{
		Text:    topic + " trend convergence cross-industry technology adoption",
		Count:   10,
		Recency: search.RecencyMonth,
		Kind:    search.KindSearch,
	})
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Assess which trends are converging around %q based on:

%s

Respond in JSON format:
{"converging_trends": ["..."], "assessment": "How these trends reinforce each other"}`, topic, results)

	return s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: trendSystemPrompt,
		UserPrompt:   prompt,
	})
}
