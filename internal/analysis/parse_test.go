package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/pkg/errors"
)

func TestExtractJSONBlock(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		block, err := extractJSONBlock(`{"key": "value"}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"key": "value"}`, string(block))
	})

	t.Run("object wrapped in prose", func(t *testing.T) {
		response := "Here is the analysis you asked for:\n\n{\"findings\": []}\n\nLet me know if you need more."
		block, err := extractJSONBlock(response)
		require.NoError(t, err)
		assert.JSONEq(t, `{"findings": []}`, string(block))
	})

	t.Run("markdown fenced object", func(t *testing.T) {
		response := "```json\n{\"score\": 0.8}\n```"
		block, err := extractJSONBlock(response)
		require.NoError(t, err)
		assert.JSONEq(t, `{"score": 0.8}`, string(block))
	})

	t.Run("nested objects stay balanced", func(t *testing.T) {
		response := `{"outer": {"inner": {"deep": 1}}, "list": [{"a": 2}]}`
		block, err := extractJSONBlock(response)
		require.NoError(t, err)
		assert.JSONEq(t, response, string(block))
	})

	t.Run("braces inside strings are ignored", func(t *testing.T) {
		response := `{"text": "a } stray { brace", "n": 1}`
		block, err := extractJSONBlock(response)
		require.NoError(t, err)
		assert.JSONEq(t, response, string(block))
	})

	t.Run("no object yields malformed response error", func(t *testing.T) {
		_, err := extractJSONBlock("I could not produce structured output, sorry.")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrMalformedResponse))
	})
}

func TestDecodeResponse(t *testing.T) {
	type payload struct {
		Findings []struct {
			Title string  `json:"title"`
			Score float64 `json:"relevance_score"`
		} `json:"findings"`
	}

	t.Run("decodes into expected shape", func(t *testing.T) {
		var p payload
		response := `Analysis complete. {"findings": [{"title": "A", "relevance_score": 0.9}]}`
		require.NoError(t, decodeResponse(response, &p))
		require.Len(t, p.Findings, 1)
		assert.Equal(t, "A", p.Findings[0].Title)
		assert.InDelta(t, 0.9, p.Findings[0].Score, 0.001)
	})

	t.Run("wrong types yield malformed response error", func(t *testing.T) {
		var p payload
		err := decodeResponse(`{"findings": "not a list"}`, &p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrMalformedResponse))
	})
}
