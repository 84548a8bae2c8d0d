package intel_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/domain/intel"
)

func validFinding() *intel.MarketFinding {
	return &intel.MarketFinding{
		Category:       intel.CategoryAIResearch,
		Title:          "New reasoning benchmark released",
		Summary:        "A new benchmark for evaluating multi-step reasoning",
		Content:        "Detailed analysis of the benchmark and early results",
		RelevanceScore: 0.85,
	}
}

func TestMarketFindingValidate(t *testing.T) {
	t.Run("valid finding passes", func(t *testing.T) {
		assert.NoError(t, validFinding().Validate())
	})

	t.Run("score above range is rejected, not clamped", func(t *testing.T) {
		f := validFinding()
		f.RelevanceScore = 1.4
		err := f.Validate()
		require.Error(t, err)
		assert.InDelta(t, 1.4, f.RelevanceScore, 0.001, "score must not be mutated")
	})

	t.Run("negative score is rejected", func(t *testing.T) {
		f := validFinding()
		f.RelevanceScore = -0.1
		assert.Error(t, f.Validate())
	})

	t.Run("boundary scores pass", func(t *testing.T) {
		for _, score := range []float64{0.0, 1.0} {
			f := validFinding()
			f.RelevanceScore = score
			assert.NoError(t, f.Validate())
		}
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		f := validFinding()
		f.Category = "quantum_hype"
		assert.Error(t, f.Validate())
	})

	t.Run("empty title is rejected", func(t *testing.T) {
		f := validFinding()
		f.Title = ""
		assert.Error(t, f.Validate())
	})

	t.Run("oversized title is rejected", func(t *testing.T) {
		f := validFinding()
		f.Title = strings.Repeat("x", 501)
		assert.Error(t, f.Validate())
	})

	t.Run("oversized summary is rejected", func(t *testing.T) {
		f := validFinding()
		f.Summary = strings.Repeat("x", 2001)
		assert.Error(t, f.Validate())
	})
}

func TestCompetitorUpdateValidate(t *testing.T) {
	valid := func() *intel.CompetitorUpdate {
		return &intel.CompetitorUpdate{
			CompanyName: "Acme AI",
			UpdateType:  intel.CategoryProductLaunch,
			Description: "Launched a new agent platform",
			ImpactLevel: intel.ImpactHigh,
		}
	}

	t.Run("valid update passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty company is rejected", func(t *testing.T) {
		u := valid()
		u.CompanyName = ""
		assert.Error(t, u.Validate())
	})

	t.Run("unknown impact level is rejected", func(t *testing.T) {
		u := valid()
		u.ImpactLevel = "catastrophic"
		assert.Error(t, u.Validate())
	})

	t.Run("unknown update type is rejected", func(t *testing.T) {
		u := valid()
		u.UpdateType = "pivot"
		assert.Error(t, u.Validate())
	})
}

func TestOpportunityValidate(t *testing.T) {
	valid := func() *intel.Opportunity {
		return &intel.Opportunity{
			Title:    "Vertical agent tooling",
			Score:    0.92,
			Priority: intel.ImpactHigh,
		}
	}

	t.Run("valid opportunity passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("out of range score is rejected", func(t *testing.T) {
		o := valid()
		o.Score = 1.01
		assert.Error(t, o.Validate())
	})

	t.Run("unknown priority is rejected", func(t *testing.T) {
		o := valid()
		o.Priority = "urgent"
		assert.Error(t, o.Validate())
	})
}

func TestTrendValidate(t *testing.T) {
	valid := func() *intel.Trend {
		return &intel.Trend{
			TrendName:     "On-device inference",
			Category:      intel.CategoryTechnology,
			MomentumScore: 0.7,
		}
	}

	t.Run("valid trend passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("out of range momentum is rejected", func(t *testing.T) {
		tr := valid()
		tr.MomentumScore = 2.0
		assert.Error(t, tr.Validate())
	})

	t.Run("oversized name is rejected", func(t *testing.T) {
		tr := valid()
		tr.TrendName = strings.Repeat("x", 256)
		assert.Error(t, tr.Validate())
	})
}

func TestEvidenceRoundTrip(t *testing.T) {
	evidence := intel.Evidence{"signal": "funding velocity", "count": float64(12)}

	value, err := evidence.Value()
	require.NoError(t, err)

	var decoded intel.Evidence
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, evidence, decoded)
}

func TestEvidenceScanNil(t *testing.T) {
	var decoded intel.Evidence
	require.NoError(t, decoded.Scan(nil))
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}
