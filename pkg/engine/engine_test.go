package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/gateway"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/registry"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/resolver"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/usage"
)

// fakeGateway counts invocations and returns a canned completion.
type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fail    bool
}

func (g *fakeGateway) Invoke(_ context.Context, inv gateway.Invocation) (gateway.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, inv.Prompt)
	if g.fail {
		return gateway.Completion{}, errors.New("model unavailable")
	}
	return gateway.Completion{
		Text: "canned advice", Provider: "fake", Model: "fake-1",
		PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, Cost: 0.003,
	}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestEngine(t *testing.T, mutate func(*config.Config)) (*Engine, *fakeGateway) {
	t.Helper()

	cfg := config.Default()
	cfg.Batch.Size = 3
	cfg.Batch.Timeout = time.Minute
	if mutate != nil {
		mutate(cfg)
	}

	reg, err := registry.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	store, err := usage.New(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gw := &fakeGateway{}
	e := New(cfg, Deps{
		Registry: reg,
		Provider: resolver.StaticProvider{},
		Gateway:  gw,
		Usage:    store,
	})
	return e, gw
}

func TestExecuteDirectRendersFallbacks(t *testing.T) {
	e, gw := newTestEngine(t, nil)

	res := e.Execute(context.Background(), "u1", "nutrition",
		map[string]any{"user_query": "what should I eat"}, models.ExecuteOptions{})

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if !strings.Contains(res.Prompt, "there") {
		t.Errorf("expected name fallback in prompt: %q", res.Prompt)
	}
	if n := strings.Count(res.Prompt, "what should I eat"); n != 1 {
		t.Errorf("expected query exactly once, found %d times", n)
	}
	if strings.Contains(res.Prompt, "{{") {
		t.Errorf("residual placeholder in prompt: %q", res.Prompt)
	}
	if res.Response != "canned advice" {
		t.Errorf("unexpected response: %q", res.Response)
	}
	if gw.callCount() != 1 {
		t.Errorf("expected 1 gateway call, got %d", gw.callCount())
	}
}

func TestExecuteCacheIdempotence(t *testing.T) {
	e, gw := newTestEngine(t, nil)
	ctx := context.Background()
	input := map[string]any{"user_query": "what should I eat"}

	first := e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{})
	if first.FromCache {
		t.Error("first call must not be a cache hit")
	}

	second := e.Execute(ctx, "u1", "nutrition",
		map[string]any{"user_query": "What should I EAT?"}, models.ExecuteOptions{})
	if !second.FromCache {
		t.Error("normalized-equal query within TTL must hit the cache")
	}
	if second.Response != first.Response {
		t.Error("cached payload must match the original")
	}
	if gw.callCount() != 1 {
		t.Errorf("cache hit must not invoke the gateway, got %d calls", gw.callCount())
	}
}

func TestExecuteTemplateNotFound(t *testing.T) {
	e, gw := newTestEngine(t, nil)

	res := e.Execute(context.Background(), "u1", "no_such_category", nil, models.ExecuteOptions{})
	if res.Success {
		t.Error("unknown category must not succeed")
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("expected explicit not-found error, got %q", res.Error)
	}
	if gw.callCount() != 0 {
		t.Error("no gateway call for unknown category")
	}
}

func TestExecuteQuotaRejection(t *testing.T) {
	e, gw := newTestEngine(t, func(cfg *config.Config) {
		cfg.Quota.Daily = 2
	})
	ctx := context.Background()
	input := map[string]any{"user_query": "unique question one"}

	e.Execute(ctx, "u1", "general_chat", input, models.ExecuteOptions{})
	e.Execute(ctx, "u1", "general_chat", map[string]any{"user_query": "a different question entirely"}, models.ExecuteOptions{})

	res := e.Execute(ctx, "u1", "general_chat", map[string]any{"user_query": "third thing altogether"}, models.ExecuteOptions{})
	if res.Success {
		t.Fatal("over-quota request must be rejected")
	}
	if res.Metadata["reset_time"] == "" {
		t.Error("rejection must carry reset metadata")
	}
	if gw.callCount() != 2 {
		t.Errorf("rejected request must not reach the gateway, got %d calls", gw.callCount())
	}

	// Other users are unaffected.
	other := e.Execute(ctx, "u2", "general_chat", map[string]any{"user_query": "hello there coach"}, models.ExecuteOptions{})
	if !other.Success {
		t.Errorf("other user should be admitted, got %q", other.Error)
	}
}

func TestExecuteUpstreamFailureNotCached(t *testing.T) {
	e, gw := newTestEngine(t, nil)
	gw.fail = true
	ctx := context.Background()
	input := map[string]any{"user_query": "what should I eat"}

	res := e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{})
	if res.Success {
		t.Fatal("upstream failure must surface as success=false")
	}
	if !strings.Contains(res.Error, "upstream") {
		t.Errorf("expected upstream error, got %q", res.Error)
	}

	// The failure must not have been cached as a success.
	gw.fail = false
	retry := e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{})
	if retry.FromCache {
		t.Error("failed result must not be served from cache")
	}
	if !retry.Success {
		t.Errorf("retry should succeed, got %q", retry.Error)
	}
}

func TestExecuteBatchedAckAndFlush(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	opts := models.ExecuteOptions{EnableBatching: true}

	res := e.Execute(ctx, "u1", "lifestyle", map[string]any{"user_query": "improve my sleep habits"}, opts)
	if !res.Success || res.RequestID == "" {
		t.Fatalf("expected queued ack, got %+v", res)
	}
	if res.Metadata["status"] != "queued" {
		t.Errorf("expected queued status, got %q", res.Metadata["status"])
	}

	e.FlushPending()

	select {
	case r := <-e.Results():
		if r.RequestID != res.RequestID {
			t.Errorf("result for wrong request: %s", r.RequestID)
		}
		if r.Response != "canned advice" || r.Err != "" {
			t.Errorf("unexpected result: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no batch result delivered")
	}
}

func TestExecuteBatchSizeTriggersFlush(t *testing.T) {
	e, gw := newTestEngine(t, func(cfg *config.Config) {
		cfg.Dedup.Enabled = false // distinct slots for every request
		cfg.Quota.Daily = 1000
	})
	ctx := context.Background()
	opts := models.ExecuteOptions{EnableBatching: true}

	queries := []string{
		"how do I sleep better at night",
		"ideas for quick healthy breakfasts",
		"simple desk stretches for work",
	}
	var last models.ExecuteResult
	for i, q := range queries {
		last = e.Execute(ctx, "u"+string(rune('1'+i)), "lifestyle", map[string]any{"user_query": q}, opts)
	}

	if last.Metadata["status"] != "flushed" {
		t.Errorf("reaching batch size should flush immediately, got %q", last.Metadata["status"])
	}
	if gw.callCount() != 1 {
		t.Errorf("three batched requests should combine into 1 invocation, got %d", gw.callCount())
	}

	got := 0
	for got < 3 {
		select {
		case <-e.Results():
			got++
		case <-time.After(time.Second):
			t.Fatalf("only %d of 3 results delivered", got)
		}
	}
}

func TestExecuteDedupFolds(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	opts := models.ExecuteOptions{EnableBatching: true}

	base := e.Execute(ctx, "u1", "lifestyle", map[string]any{"user_query": "how can I sleep better at night"}, opts)
	if base.Deduped {
		t.Fatal("first request cannot be a duplicate")
	}

	dup := e.Execute(ctx, "u2", "lifestyle", map[string]any{"user_query": "How can I sleep better at night?"}, opts)
	if !dup.Deduped {
		t.Fatal("near-identical query should fold onto the pending request")
	}
	if dup.Metadata["folded_onto"] != base.RequestID {
		t.Errorf("expected fold onto %s, got %s", base.RequestID, dup.Metadata["folded_onto"])
	}

	e.FlushPending()

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case r := <-e.Results():
			seen[r.RequestID] = true
		case <-time.After(time.Second):
			t.Fatalf("duplicate did not receive the shared result, got %v", seen)
		}
	}
	if !seen[base.RequestID] || !seen[dup.RequestID] {
		t.Errorf("both original and duplicate must be delivered: %v", seen)
	}
}

func TestDeliveryWaitsForSlowConsumer(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	res := e.Execute(ctx, "u1", "lifestyle",
		map[string]any{"user_query": "morning stretching routine"},
		models.ExecuteOptions{EnableBatching: true})
	if !res.Success {
		t.Fatalf("enqueue failed: %q", res.Error)
	}

	// Saturate the results channel before the flush happens.
	for i := 0; i < cap(e.results); i++ {
		e.results <- models.BatchResult{RequestID: "filler"}
	}

	e.FlushPending()

	// Drain the fillers; the flushed result must still arrive.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-e.Results():
			if r.RequestID == res.RequestID {
				return
			}
		case <-deadline:
			t.Fatal("flushed result was dropped while the consumer was slow")
		}
	}
}

func TestExecuteDissimilarDoesNotFold(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	opts := models.ExecuteOptions{EnableBatching: true}

	e.Execute(ctx, "u1", "lifestyle", map[string]any{"user_query": "how can I sleep better"}, opts)
	res := e.Execute(ctx, "u2", "lifestyle", map[string]any{"user_query": "best stretches for lower back pain"}, opts)
	if res.Deduped {
		t.Error("dissimilar queries must not fold")
	}
}

func TestCostMetricsAfterTraffic(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	input := map[string]any{"user_query": "what should I eat"}

	e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{})
	e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{}) // cache hit

	m, err := e.CostMetrics(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if m.DirectCount != 1 || m.CacheHits != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if m.CacheSaved <= 0 {
		t.Error("cache hit should credit savings")
	}
}

func TestQuotaStatusView(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	e.Execute(ctx, "u1", "nutrition", map[string]any{"user_query": "q"}, models.ExecuteOptions{})
	st := e.QuotaStatus("u1")
	if st.DailyUsed != 1 {
		t.Errorf("expected 1 daily used, got %d", st.DailyUsed)
	}
	if st.IsOverLimit {
		t.Error("one request should not exceed quota")
	}
}

func TestOptimizationReportShape(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	input := map[string]any{"user_query": "what should I eat"}

	rep := e.OptimizationReport()
	if rep.OptimizationRate < reportBase || rep.OptimizationRate > reportCap {
		t.Errorf("rate out of bounds: %v", rep.OptimizationRate)
	}
	if len(rep.Recommendations) == 0 {
		t.Error("below-target score should carry recommendations")
	}

	// More cache hits can only raise the score.
	before := rep.OptimizationRate
	e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{})
	e.Execute(ctx, "u1", "nutrition", input, models.ExecuteOptions{})
	after := e.OptimizationReport().OptimizationRate
	if after < before {
		t.Errorf("score must be monotonic in cache hit rate: %v -> %v", before, after)
	}
}

func TestAddTemplateAndReload(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	err := e.AddTemplate(models.PromptTemplate{
		ID: "custom_hydration", Category: "nutrition",
		Body: "Remind {{user_name}} to hydrate.",
		Variables: []models.Variable{
			{Name: "user_name", Type: models.TypeString, Required: true, Source: models.SourceUserProfile},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.ReloadTemplates(); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, tpl := range e.TemplatesByCategory("nutrition") {
		if tpl.ID == "custom_hydration" {
			found = true
		}
	}
	if !found {
		t.Error("custom template must survive reload")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.Batch.Timeout = 10 * time.Millisecond
		cfg.Cache.SweepInterval = 10 * time.Millisecond
	})

	e.Start(context.Background())

	res := e.Execute(context.Background(), "u1", "lifestyle",
		map[string]any{"user_query": "evening routine ideas"}, models.ExecuteOptions{EnableBatching: true})
	if !res.Success {
		t.Fatalf("enqueue failed: %q", res.Error)
	}

	// The flush timer should pick the request up without a size trigger.
	select {
	case r := <-e.Results():
		if r.RequestID != res.RequestID {
			t.Errorf("unexpected request id: %s", r.RequestID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer-driven flush never happened")
	}

	e.Stop()
}
