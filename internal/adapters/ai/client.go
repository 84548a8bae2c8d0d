package ai

import "context"

// CompletionRequest carries one completion call to the model provider
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// CompletionClient is the completion-service collaborator. Implementations
// return the raw model text; callers own parsing and validation.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
