package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/adapters/config"
	"sentinel/internal/metrics"
	"sentinel/pkg/errors"
)

func testOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOpenAIClient(config.AIConfig{
		OpenAIKey:    "test-key",
		Model:        "gpt-4o",
		Temperature:  0.1,
		MaxTokens:    4096,
		Timeout:      5 * time.Second,
		ReqPerMinute: 6000,
	}).WithBaseURL(server.URL)
}

func TestCompleteSuccess(t *testing.T) {
	var gotReq openAIRequest

	client := testOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "analysis text"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
		}`))
	})

	out, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
	require.NoError(t, err)
	assert.Equal(t, "analysis text", out)

	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, 4096, gotReq.MaxTokens)
}

func TestCompleteRequestOverrides(t *testing.T) {
	var gotReq openAIRequest
	client := testOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{
		UserPrompt:  "user",
		MaxTokens:   512,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, 512, gotReq.MaxTokens)
	assert.InDelta(t, 0.7, gotReq.Temperature, 0.001)
}

func TestCompleteQuotaExceeded(t *testing.T) {
	client := testOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQuotaExceeded))
}

func TestCompleteAPIError(t *testing.T) {
	client := testOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "context length exceeded", "type": "invalid_request_error"}}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExternal))
	assert.Contains(t, err.Error(), "context length exceeded")
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := testOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExternal))
}

func TestCompleteFailureReachesErrorCounter(t *testing.T) {
	errCounter := metrics.CompletionCalls.WithLabelValues("gpt-4o", "error")
	before := testutil.ToFloat64(errCounter)

	client := testOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(errCounter))
}

func TestCompleteMissingAPIKey(t *testing.T) {
	client := NewOpenAIClient(config.AIConfig{ReqPerMinute: 6000})
	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
