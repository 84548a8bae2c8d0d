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

const competitorSystemPrompt = `You are a competitive intelligence analyst.
You evaluate competitor moves from search results and grade their impact on
our competitive position. Respond only with JSON.`

type competitorPayload struct {
	CompetitorSummary string          `json:"competitor_summary"`
	Updates           []updatePayload `json:"updates"`
	ThreatLevel       string          `json:"competitive_threat_level"`
}

type updatePayload struct {
	UpdateType  string `json:"update_type"`
	Description string `json:"description"`
	ImpactLevel string `json:"impact_level"`
	SourceURL   string `json:"source_url"`
}

// CompetitorStage monitors a fixed list of tracked competitors
type CompetitorStage struct {
	searcher    search.Client
	completion  ai.CompletionClient
	store       intel.Store
	competitors []string
	log         *logger.Logger
}

// NewCompetitorStage creates the competitor intelligence stage
func NewCompetitorStage(searcher search.Client, completion ai.CompletionClient, store intel.Store, competitors []string) *CompetitorStage {
	return &CompetitorStage{
		searcher:    searcher,
		completion:  completion,
		store:       store,
		competitors: competitors,
		log:         logger.Get().With("stage", "competitor"),
	}
}

// Name returns the stage identifier
func (s *CompetitorStage) Name() string { return "competitor" }

// Run checks each tracked competitor for recent moves. A failure for one
// company does not abort the remaining companies.
func (s *CompetitorStage) Run(ctx context.Context, _ StageContext) StageResult {
	start := time.Now()
	result := s.run(ctx)
	result.Duration = time.Since(start)
	metrics.RecordStage(s.Name(), result.Duration, result.Persisted, result.Skipped, result.Err != nil)
	return result
}

func (s *CompetitorStage) run(ctx context.Context) StageResult {
	var (
		persisted, skipped int
		summaries          []string
		failures           int
	)

	for _, name := range s.competitors {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		payload, err := s.analyzeCompetitor(ctx, name)
		if err != nil {
			s.log.Warnw("Competitor analysis failed", "company", name, "error", err)
			failures++
			continue
		}

		p, sk := s.persistUpdates(ctx, name, payload.Updates)
		persisted += p
		skipped += sk

		if payload.CompetitorSummary != "" {
			summaries = append(summaries, fmt.Sprintf("%s: %s", name, payload.CompetitorSummary))
		}
	}

	result := StageResult{
		Stage:     s.Name(),
		Persisted: persisted,
		Skipped:   skipped,
		Digest:    strings.Join(summaries, "\n"),
	}
	// Only all-company failure degrades the stage
	if failures > 0 && failures == len(s.competitors) {
		result.Err = fmt.Errorf("all %d competitor analyses failed", failures)
	}
	return result
}

func (s *CompetitorStage) analyzeCompetitor(ctx context.Context, name string) (*competitorPayload, error) {
	results, err := s.searcher.Search(ctx, search.Query{
		Text:    fmt.Sprintf("%q AI artificial intelligence update news announcement product launch", name),
		Count:   15,
		Recency: search.RecencyMonth,
		Kind:    search.KindNews,
	})
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Analyze the following search results about %s competitor updates:

Search Results:
%s

Provide analysis in JSON format:
{
  "competitor_summary": "Brief overview of competitor's recent activities",
  "updates": [
    {
      "update_type": "ai_research|product_launch|funding|acquisition|partnership|regulation|technology|market_trend",
      "description": "Description of the update",
      "impact_level": "low|medium|high|critical",
      "source_url": "URL if available"
    }
  ],
  "competitive_threat_level": "low|medium|high|critical"
}`, name, results)

	response, err := s.completion.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: competitorSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, err
	}

	var payload competitorPayload
	if err := decodeResponse(response, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *CompetitorStage) persistUpdates(ctx context.Context, company string, items []updatePayload) (persisted, skipped int) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, item := range items {
		update := &intel.CompetitorUpdate{
			CompanyName:  company,
			UpdateType:   intel.Category(strings.TrimSpace(item.UpdateType)),
			Description:  item.Description,
			ImpactLevel:  intel.Impact(strings.TrimSpace(item.ImpactLevel)),
			SourceURL:    item.SourceURL,
			DetectedDate: today,
		}

		if err := update.Validate(); err != nil {
			s.log.Warnw("Dropping invalid competitor update", "company", company, "error", err)
			skipped++
			continue
		}

		if err := s.store.InsertCompetitorUpdate(ctx, update); err != nil {
			s.log.Errorw("Failed to persist competitor update", "company", company, "error", err)
			skipped++
			continue
		}
		persisted++
	}
	return persisted, skipped
}
