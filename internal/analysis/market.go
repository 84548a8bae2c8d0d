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

const marketSystemPrompt = `You are a market intelligence analyst covering the AI industry.
You extract factual, well-sourced findings from search results and rate their
relevance to a B2B AI product company. Respond only with JSON.`

const marketResponseContract = `Respond in JSON format:
{
  "executive_summary": "Brief summary of key developments",
  "findings": [
    {
      "title": "Finding title",
      "summary": "Brief summary",
      "content": "Detailed analysis",
      "category": "ai_research|product_launch|funding|acquisition|partnership|regulation|technology|market_trend",
      "relevance_score": 0.85,
      "source_url": "URL if available"
    }
  ],
  "key_insights": ["List of key insights"]
}
Rate relevance from 0.0 to 1.0 based on potential business impact.`

type marketPayload struct {
	ExecutiveSummary string           `json:"executive_summary"`
	Findings         []findingPayload `json:"findings"`
	KeyInsights      []string         `json:"key_insights"`
}

type findingPayload struct {
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	Content        string  `json:"content"`
	Category       string  `json:"category"`
	RelevanceScore float64 `json:"relevance_score"`
	SourceURL      string  `json:"source_url"`
}

// MarketStage gathers industry news and extracts market findings
type MarketStage struct {
	searcher   search.Client
	completion ai.CompletionClient
	store      intel.Store
	log        *logger.Logger
}

// NewMarketStage creates the market intelligence stage
func NewMarketStage(searcher search.Client, completion ai.CompletionClient, store intel.Store) *MarketStage {
	return &MarketStage{
		searcher:   searcher,
		completion: completion,
		store:      store,
		log:        logger.Get().With("stage", "market"),
	}
}

// Name returns the stage identifier
func (s *MarketStage) Name() string { return "market" }

// Run gathers recent industry signals, extracts findings through the
// completion service, and persists the ones that pass validation
func (s *MarketStage) Run(ctx context.Context, _ StageContext) StageResult {
	start := time.Now()
	result := s.run(ctx)
	result.Duration = time.Since(start)
	metrics.RecordStage(s.Name(), result.Duration, result.Persisted, result.Skipped, result.Err != nil)
	return result
}

func (s *MarketStage) run(ctx context.Context) StageResult {
	news, err := s.searcher.Search(ctx, search.Query{
		Text:    "artificial intelligence AI news technology breakthrough startup funding",
		Count:   20,
		Recency: search.RecencyWeek,
		Kind:    search.KindNews,
	})
	if err != nil {
		s.log.Warnw("News search failed, continuing without results", "error", err)
		news = ""
	}

	emerging, err := s.searcher.Search(ctx, search.Query{
		Text:    "emerging AI technologies breakthrough innovation new artificial intelligence",
		Count:   15,
		Recency: search.RecencyMonth,
		Kind:    search.KindNews,
	})
	if err != nil {
		s.log.Warnw("Emerging tech search failed, continuing without results", "error", err)
		emerging = ""
	}

	funding, err := s.searcher.Search(ctx, search.Query{
		Text:    "AI startup funding round venture capital investment announcement",
		Count:   15,
		Recency: search.RecencyWeek,
		Kind:    search.KindNews,
	})
	if err != nil {
		s.log.Warnw("Funding search failed, continuing without results", "error", err)
		funding = ""
	}

	if news == "" && emerging == "" && funding == "" {
		return emptyResult(s.Name(), fmt.Errorf("no search data available: %w", err))
	}

	prompt := fmt.Sprintf(`Based on the following market intelligence data, analyze and extract key findings:

Recent AI News:
%s

Emerging Technologies:
%s

Funding Activity:
%s

%s`, news, emerging, funding, marketResponseContract)

	response, err := s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: marketSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		s.log.Errorw("Completion call failed", "error", err)
		return emptyResult(s.Name(), err)
	}

	var payload marketPayload
	if err := decodeResponse(response, &payload); err != nil {
		s.log.Errorw("Failed to parse market analysis", "error", err)
		return emptyResult(s.Name(), err)
	}

	persisted, skipped := s.persistFindings(ctx, payload.Findings)

	return StageResult{
		Stage:       s.Name(),
		Persisted:   persisted,
		Skipped:     skipped,
		Digest:      payload.ExecutiveSummary,
		KeyInsights: payload.KeyInsights,
	}
}

func (s *MarketStage) persistFindings(ctx context.Context, items []findingPayload) (persisted, skipped int) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, item := range items {
		finding := &intel.MarketFinding{
			Date:           today,
			Category:       intel.Category(strings.TrimSpace(item.Category)),
			Title:          item.Title,
			Summary:        item.Summary,
			Content:        item.Content,
			RelevanceScore: item.RelevanceScore,
			SourceURL:      item.SourceURL,
		}

		if err := finding.Validate(); err != nil {
			s.log.Warnw("Dropping invalid finding", "title", item.Title, "error", err)
			skipped++
			continue
		}

		if err := s.store.InsertFinding(ctx, finding); err != nil {
			s.log.Errorw("Failed to persist finding", "title", finding.Title, "error", err)
			skipped++
			continue
		}
		persisted++
	}
	return persisted, skipped
}

// AnalyzeTopic runs a focused, non-persisting market lookup for an ad-hoc
// topic. Used by quick analysis.
func (s *MarketStage) AnalyzeTopic(ctx context.Context, topic string) (string, error) {
	results, err := s.searcher.Search(ctx, search.Query{
		Text:    topic + " AI artificial intelligence market analysis",
		Count:   10,
		Recency: search.RecencyMonth,
		Kind:    search.KindNews,
	})
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Analyze the following search results about %q and summarize
the market landscape, notable players, and recent developments:

%s

Respond in JSON format:
{"summary": "Market overview", "notable_developments": ["..."], "relevance": "Why this matters"}`, topic, results)

	return s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: marketSystemPrompt,
		UserPrompt:   prompt,
	})
}
