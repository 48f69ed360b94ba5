package gateway

import (
	"context"
	"errors"
)

// Invocation is one rendered prompt bound for an AI model.
type Invocation struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Completion is the model's answer plus its accounting metadata.
type Completion struct {
	Text             string  `json:"text"`
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// ErrAllProvidersFailed is returned when every provider in the fallback
// chain failed.
var ErrAllProvidersFailed = errors.New("all upstream providers failed")

// Gateway performs the downstream AI invocation. The engine never retries
// it beyond the gateway's own provider chain.
type Gateway interface {
	Invoke(ctx context.Context, inv Invocation) (Completion, error)
}
