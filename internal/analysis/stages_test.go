package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/adapters/ai"
	"sentinel/internal/adapters/search"
	"sentinel/internal/domain/intel"
)

// mockSearcher is a function-field implementation of search.Client
type mockSearcher struct {
	searchFunc func(ctx context.Context, q search.Query) (string, error)
}

func (m *mockSearcher) Search(ctx context.Context, q search.Query) (string, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, q)
	}
	return "1. Some result\n   Summary: something happened", nil
}

// mockCompletion is a function-field implementation of ai.CompletionClient
type mockCompletion struct {
	mu        sync.Mutex
	calls     []ai.CompletionRequest
	responses []string
	err       error
}

func (m *mockCompletion) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.calls = append(m.calls, req)
	if len(m.responses) == 0 {
		return "{}", nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

// recordingStore counts inserts per record kind
type recordingStore struct {
	mockStore
	mu            sync.Mutex
	findings      []*intel.MarketFinding
	updates       []*intel.CompetitorUpdate
	trends        []*intel.Trend
	opportunities []*intel.Opportunity
	insertErr     error
}

func (r *recordingStore) InsertFinding(ctx context.Context, f *intel.MarketFinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.findings = append(r.findings, f)
	return nil
}

func (r *recordingStore) InsertCompetitorUpdate(ctx context.Context, u *intel.CompetitorUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recordingStore) InsertTrend(ctx context.Context, t *intel.Trend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trends = append(r.trends, t)
	return nil
}

func (r *recordingStore) InsertOpportunity(ctx context.Context, o *intel.Opportunity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opportunities = append(r.opportunities, o)
	return nil
}

func marketResponse(t *testing.T, findings []map[string]interface{}) string {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"executive_summary": "Busy week in the industry",
		"findings":          findings,
		"key_insights":      []string{"insight one"},
	})
	require.NoError(t, err)
	return "Here is the analysis:\n" + string(body)
}

func TestMarketStageValidFindingsPersistedInvalidSkipped(t *testing.T) {
	findings := make([]map[string]interface{}, 0, 7)
	for i := 0; i < 5; i++ {
		findings = append(findings, map[string]interface{}{
			"title":           fmt.Sprintf("Valid finding %d", i),
			"summary":         "summary",
			"content":         "content",
			"category":        "ai_research",
			"relevance_score": 0.8,
		})
	}
	// Two items with out-of-range scores must be dropped, not clamped
	for i := 0; i < 2; i++ {
		findings = append(findings, map[string]interface{}{
			"title":           fmt.Sprintf("Invalid finding %d", i),
			"summary":         "summary",
			"content":         "content",
			"category":        "ai_research",
			"relevance_score": 1.4,
		})
	}

	store := &recordingStore{}
	completion := &mockCompletion{responses: []string{marketResponse(t, findings)}}
	stage := NewMarketStage(&mockSearcher{}, completion, store)

	result := stage.Run(context.Background(), StageContext{})

	require.NoError(t, result.Err)
	assert.Equal(t, 5, result.Persisted)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "Busy week in the industry", result.Digest)
	assert.Len(t, store.findings, 5)
}

func TestMarketStageCompletionFailureIsSoftError(t *testing.T) {
	store := &recordingStore{}
	completion := &mockCompletion{err: fmt.Errorf("upstream 503")}
	stage := NewMarketStage(&mockSearcher{}, completion, store)

	result := stage.Run(context.Background(), StageContext{})

	require.Error(t, result.Err)
	assert.Zero(t, result.Persisted)
	assert.Empty(t, store.findings)
}

func TestMarketStageMalformedResponseIsSoftError(t *testing.T) {
	store := &recordingStore{}
	completion := &mockCompletion{responses: []string{"I'm unable to produce JSON today."}}
	stage := NewMarketStage(&mockSearcher{}, completion, store)

	result := stage.Run(context.Background(), StageContext{})

	require.Error(t, result.Err)
	assert.Zero(t, result.Persisted)
}

func TestMarketStageInsertFailureSkipsItem(t *testing.T) {
	findings := []map[string]interface{}{{
		"title":           "Only finding",
		"summary":         "summary",
		"content":         "content",
		"category":        "funding",
		"relevance_score": 0.9,
	}}

	store := &recordingStore{insertErr: fmt.Errorf("connection reset")}
	completion := &mockCompletion{responses: []string{marketResponse(t, findings)}}
	stage := NewMarketStage(&mockSearcher{}, completion, store)

	result := stage.Run(context.Background(), StageContext{})

	// A persistence failure drops the item but does not degrade the stage
	require.NoError(t, result.Err)
	assert.Zero(t, result.Persisted)
	assert.Equal(t, 1, result.Skipped)
}

func TestCompetitorStagePerCompanyIsolation(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, q search.Query) (string, error) {
			if strings.Contains(q.Text, "Broken Corp") {
				return "", fmt.Errorf("quota exceeded")
			}
			return "news results", nil
		},
	}

	response, err := json.Marshal(map[string]interface{}{
		"competitor_summary": "shipped a new model",
		"updates": []map[string]interface{}{{
			"update_type":  "product_launch",
			"description":  "New flagship model",
			"impact_level": "high",
		}},
	})
	require.NoError(t, err)

	store := &recordingStore{}
	completion := &mockCompletion{responses: []string{string(response)}}
	stage := NewCompetitorStage(searcher, completion, store, []string{"Acme AI", "Broken Corp"})

	result := stage.Run(context.Background(), StageContext{})

	// One company failed, the other persisted; the stage is not degraded
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Persisted)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "Acme AI", store.updates[0].CompanyName)
	assert.Equal(t, intel.ImpactHigh, store.updates[0].ImpactLevel)
}

func TestCompetitorStageAllCompaniesFailedDegrades(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, q search.Query) (string, error) {
			return "", fmt.Errorf("network down")
		},
	}

	store := &recordingStore{}
	stage := NewCompetitorStage(searcher, &mockCompletion{}, store, []string{"A", "B"})

	result := stage.Run(context.Background(), StageContext{})
	require.Error(t, result.Err)
	assert.Zero(t, result.Persisted)
}

func TestTrendStagePersistsScoredTrends(t *testing.T) {
	response, err := json.Marshal(map[string]interface{}{
		"summary": "Momentum is shifting to on-device inference",
		"trends": []map[string]interface{}{
			{
				"trend_name":     "On-device inference",
				"category":       "technology",
				"momentum_score": 0.8,
				"evidence":       map[string]interface{}{"signal": "chip announcements"},
				"prediction":     "Mainstream within a year",
			},
			{
				"trend_name":     "Overscored trend",
				"category":       "technology",
				"momentum_score": 1.5,
			},
		},
	})
	require.NoError(t, err)

	store := &recordingStore{}
	store.trendsFunc = func(ctx context.Context, minMomentum float64, since time.Time, limit int) ([]intel.Trend, error) {
		return []intel.Trend{{TrendName: "Agent frameworks", MomentumScore: 0.7}}, nil
	}
	completion := &mockCompletion{responses: []string{string(response)}}
	stage := NewTrendStage(&mockSearcher{}, completion, store, 30*24*time.Hour)

	result := stage.Run(context.Background(), StageContext{})

	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "Momentum is shifting to on-device inference", result.Digest)

	// Prior trends on record feed back into the prompt
	require.Len(t, completion.calls, 1)
	assert.Contains(t, completion.calls[0].UserPrompt, "Agent frameworks")

	require.Len(t, store.trends, 1)
	assert.Equal(t, "On-device inference", store.trends[0].TrendName)
}

func TestSynthesisStageTwoSequentialCalls(t *testing.T) {
	synthesisResp, err := json.Marshal(map[string]interface{}{
		"executive_summary":  "Consolidated view",
		"strategic_insights": []string{"insight"},
		"recommendations":    []string{"recommendation"},
	})
	require.NoError(t, err)

	oppsResp, err := json.Marshal(map[string]interface{}{
		"opportunities": []map[string]interface{}{
			{
				"title":    "Valid opportunity",
				"score":    0.85,
				"priority": "high",
			},
			{
				"title":    "Overscored opportunity",
				"score":    1.2,
				"priority": "high",
			},
		},
	})
	require.NoError(t, err)

	store := &recordingStore{}
	completion := &mockCompletion{responses: []string{string(synthesisResp), string(oppsResp)}}
	stage := NewSynthesisStage(completion, store, time.Hour)

	empty := func(name string) *StageResult { return &StageResult{Stage: name} }
	result := stage.Run(context.Background(), StageContext{
		Market:     empty("market"),
		Competitor: empty("competitor"),
		Trend:      empty("trend"),
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "Consolidated view", result.Digest)

	// The second call must consume the first call's output
	require.Len(t, completion.calls, 2)
	assert.Contains(t, completion.calls[1].UserPrompt, "Consolidated view")

	require.Len(t, store.opportunities, 1)
	assert.Equal(t, "Valid opportunity", store.opportunities[0].Title)
}

func TestSynthesisStageSecondCallFailureKeepsInsights(t *testing.T) {
	synthesisResp, err := json.Marshal(map[string]interface{}{
		"executive_summary":  "Still useful summary",
		"strategic_insights": []string{"insight"},
		"recommendations":    []string{},
	})
	require.NoError(t, err)

	store := &recordingStore{}
	completion := &mockCompletion{responses: []string{string(synthesisResp), "no json here"}}
	stage := NewSynthesisStage(completion, store, time.Hour)

	empty := func(name string) *StageResult { return &StageResult{Stage: name} }
	result := stage.Run(context.Background(), StageContext{
		Market:     empty("market"),
		Competitor: empty("competitor"),
		Trend:      empty("trend"),
	})

	require.Error(t, result.Err)
	assert.Equal(t, "Still useful summary", result.Digest)
	assert.Zero(t, result.Persisted)
	assert.Empty(t, store.opportunities)
}
