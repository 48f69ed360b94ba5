package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
)

// HTTPGateway calls OpenAI-compatible chat completion endpoints. Providers
// form an ordered fallback chain: on a transport error or a 5xx the next
// provider is tried. There is no retry loop beyond the chain.
type HTTPGateway struct {
	providers []config.ProviderConfig
	pricing   config.PricingConfig
	client    *http.Client
}

// NewHTTP creates an HTTPGateway from provider config. The pricing table
// drives the cost estimate attached to each completion, per model.
func NewHTTP(providers []config.ProviderConfig, pricing config.PricingConfig) *HTTPGateway {
	return &HTTPGateway{
		providers: providers,
		pricing:   pricing,
		client:    http.DefaultClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Invoke sends the prompt to each provider in turn until one answers.
func (g *HTTPGateway) Invoke(ctx context.Context, inv Invocation) (Completion, error) {
	if len(g.providers) == 0 {
		return Completion{}, ErrAllProvidersFailed
	}

	for _, p := range g.providers {
		model := inv.Model
		if model == "" {
			model = p.Model
		}
		comp, err := g.invokeProvider(ctx, p, model, inv)
		if err != nil {
			log.Printf("provider %s failed: %v, trying next", p.Name, err)
			continue
		}
		return comp, nil
	}
	return Completion{}, ErrAllProvidersFailed
}

func (g *HTTPGateway) invokeProvider(ctx context.Context, p config.ProviderConfig, model string, inv Invocation) (Completion, error) {
	target, err := url.Parse(p.URL)
	if err != nil {
		return Completion{}, fmt.Errorf("invalid provider URL: %w", err)
	}

	reqBody := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: inv.Prompt}},
	}
	if inv.MaxTokens > 0 {
		reqBody.MaxTokens = &inv.MaxTokens
	}
	if inv.Temperature > 0 {
		reqBody.Temperature = &inv.Temperature
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String()+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("provider returned %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return Completion{}, fmt.Errorf("parse response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Completion{}, fmt.Errorf("provider returned no choices")
	}

	comp := Completion{
		Text:     cr.Choices[0].Message.Content,
		Provider: p.Name,
		Model:    cr.Model,
	}
	if comp.Model == "" {
		comp.Model = model
	}
	if cr.Usage != nil {
		comp.PromptTokens = cr.Usage.PromptTokens
		comp.CompletionTokens = cr.Usage.CompletionTokens
		comp.TotalTokens = cr.Usage.TotalTokens
		comp.Cost = float64(cr.Usage.TotalTokens) * g.pricing.RateFor(comp.Model)
	}
	return comp, nil
}
