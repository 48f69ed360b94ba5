package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
)

func okServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": text}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInvoke(t *testing.T) {
	srv := okServer(t, "eat more vegetables")
	g := NewHTTP([]config.ProviderConfig{
		{Name: "primary", URL: srv.URL, Model: "gpt-4o-mini"},
	}, config.PricingConfig{CostPerToken: 0.001})

	comp, err := g.Invoke(context.Background(), Invocation{Prompt: "what should I eat"})
	if err != nil {
		t.Fatal(err)
	}
	if comp.Text != "eat more vegetables" {
		t.Errorf("unexpected text: %q", comp.Text)
	}
	if comp.TotalTokens != 30 {
		t.Errorf("expected 30 tokens, got %d", comp.TotalTokens)
	}
	if diff := comp.Cost - 0.03; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("expected cost 0.03, got %v", comp.Cost)
	}
	if comp.Provider != "primary" {
		t.Errorf("expected primary provider, got %s", comp.Provider)
	}
}

func TestInvokeFallbackChain(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	working := okServer(t, "fallback answer")

	g := NewHTTP([]config.ProviderConfig{
		{Name: "broken", URL: failing.URL, Model: "m1"},
		{Name: "backup", URL: working.URL, Model: "m2"},
	}, config.PricingConfig{CostPerToken: 0.001})

	comp, err := g.Invoke(context.Background(), Invocation{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if comp.Provider != "backup" {
		t.Errorf("expected backup provider, got %s", comp.Provider)
	}
}

func TestInvokeAllFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(failing.Close)

	g := NewHTTP([]config.ProviderConfig{{Name: "broken", URL: failing.URL}}, config.PricingConfig{CostPerToken: 0.001})
	if _, err := g.Invoke(context.Background(), Invocation{Prompt: "hi"}); err != ErrAllProvidersFailed {
		t.Errorf("expected ErrAllProvidersFailed, got %v", err)
	}
}

func TestInvokeNoProviders(t *testing.T) {
	g := NewHTTP(nil, config.PricingConfig{CostPerToken: 0.001})
	if _, err := g.Invoke(context.Background(), Invocation{Prompt: "hi"}); err != ErrAllProvidersFailed {
		t.Errorf("expected ErrAllProvidersFailed, got %v", err)
	}
}

func TestInvokePerModelRate(t *testing.T) {
	srv := okServer(t, "ok")
	g := NewHTTP([]config.ProviderConfig{
		{Name: "primary", URL: srv.URL, Model: "gpt-4o"},
	}, config.PricingConfig{
		CostPerToken: 0.001,
		ModelRates:   map[string]float64{"gpt-4o": 0.002},
	})

	comp, err := g.Invoke(context.Background(), Invocation{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := comp.Cost - 0.06; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("expected model-specific rate to apply (0.06), got %v", comp.Cost)
	}
}
