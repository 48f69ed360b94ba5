package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/batch"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/cache"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/dedup"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/gateway"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/quota"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/registry"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/renderer"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/resolver"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/usage"
)

// ErrTemplateNotFound is surfaced when no template matches a request.
var ErrTemplateNotFound = registry.ErrNotFound

// Engine orchestrates the prompt pipeline: quota admission, cache lookup,
// near-duplicate folding, batching, and the direct render-and-invoke path.
type Engine struct {
	cfg      *config.Config
	registry *registry.Registry
	resolver *resolver.Resolver
	cache    *cache.Cache
	matcher  *dedup.Matcher
	batcher  *batch.Batcher
	quota    *quota.Tracker
	usage    usage.Store
	gateway  gateway.Gateway

	results chan models.BatchResult
	cancel  context.CancelFunc

	dedupFolds atomic.Int64
}

// Deps are the external collaborators the engine does not own.
type Deps struct {
	Registry *registry.Registry
	Provider resolver.DataProvider
	Gateway  gateway.Gateway
	Usage    usage.Store
}

// New wires an Engine from configuration and collaborators.
func New(cfg *config.Config, deps Deps) *Engine {
	e := &Engine{
		cfg:      cfg,
		registry: deps.Registry,
		resolver: resolver.New(deps.Provider),
		cache:    cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries),
		matcher:  dedup.New(cfg.Dedup.Threshold),
		quota:    quota.New(cfg.Quota.Daily, cfg.Quota.Monthly, cfg.Quota.HistoryLimit),
		usage:    deps.Usage,
		gateway:  deps.Gateway,
		results:  make(chan models.BatchResult, 256),
	}
	e.batcher = batch.New(batch.Options{
		Size:           cfg.Batch.Size,
		Timeout:        cfg.Batch.Timeout,
		OverheadTokens: cfg.Pricing.OverheadTokens,
		CostPerToken:   cfg.Pricing.CostPerToken,
	}, e.handleFlush)
	return e
}

// Start launches the background cache sweep and batch flush timers.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	if e.cfg.Cache.Enabled {
		e.cache.Start(ctx, e.cfg.Cache.SweepInterval)
	}
	e.batcher.Start(ctx)
}

// Stop cancels the background timers. Pending batches are flushed on the
// way out so nothing enqueued is dropped.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Results delivers the asynchronous outcomes of flushed batches, one per
// member request (duplicates included).
func (e *Engine) Results() <-chan models.BatchResult {
	return e.results
}

// FlushPending drains every batch queue immediately, regardless of size
// or age. Used on shutdown and by callers that cannot wait for the timer.
func (e *Engine) FlushPending() {
	e.batcher.FlushAll()
}

// Execute runs one request through the pipeline. It always returns a
// result object; failures are reported as success:false with an error
// message rather than an error return.
func (e *Engine) Execute(ctx context.Context, userID, category string, input map[string]any, opts models.ExecuteOptions) (res models.ExecuteResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("execute panic recovered: %v", r)
			res = models.ExecuteResult{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	// Admission: over-quota requests never reach the cache or batch stage.
	if err := e.quota.Admit(userID); err != nil {
		st := e.quota.Check(userID)
		return models.ExecuteResult{
			Success: false,
			Error:   err.Error(),
			Metadata: map[string]string{
				"daily_used":  fmt.Sprint(st.DailyUsed),
				"daily_quota": fmt.Sprint(st.DailyQuota),
				"reset_time":  st.ResetTime.Format(time.RFC3339),
			},
		}
	}

	tpl, ok := e.registry.Select(category, opts.TemplateID, opts.Language)
	if !ok {
		return models.ExecuteResult{
			Success: false,
			Error:   fmt.Sprintf("%v: category %q", ErrTemplateNotFound, category),
		}
	}

	e.quota.Track(userID)

	query := queryFrom(input)

	if opts.EnableBatching {
		return e.executeOptimized(ctx, userID, tpl, query, input)
	}
	return e.executeDirect(ctx, userID, tpl, query, input)
}

func newRequestID() string { return uuid.NewString() }

// queryFrom pulls the free-text query out of the caller input.
func queryFrom(input map[string]any) string {
	if q, ok := input["user_query"].(string); ok {
		return q
	}
	return ""
}

// executeDirect renders and invokes synchronously. Only the external AI
// call and data-provider lookup block.
func (e *Engine) executeDirect(ctx context.Context, userID string, tpl models.PromptTemplate, query string, input map[string]any) models.ExecuteResult {
	values, err := e.resolver.Resolve(ctx, userID, tpl, input)
	if err != nil {
		return models.ExecuteResult{Success: false, Error: err.Error(), TemplateID: tpl.ID}
	}
	prompt := renderer.Render(tpl, values)

	key := cache.Fingerprint(tpl.Category, tpl.ID, query)
	if e.cfg.Cache.Enabled {
		if payload, ok := e.cache.Get(key); ok {
			e.record(ctx, models.UsageRecord{
				UserID: userID, Category: tpl.Category, Source: models.UsageCache,
				SavedCost: e.standaloneCost(),
			})
			return models.ExecuteResult{
				Success:    true,
				Prompt:     prompt,
				Response:   string(payload),
				FromCache:  true,
				TemplateID: tpl.ID,
			}
		}
	}

	comp, err := e.gateway.Invoke(ctx, gateway.Invocation{Prompt: prompt})
	if err != nil {
		// Upstream failures are surfaced, never converted into a cached
		// or batched success.
		return models.ExecuteResult{
			Success:    false,
			Prompt:     prompt,
			Error:      fmt.Sprintf("upstream: %v", err),
			TemplateID: tpl.ID,
		}
	}

	if e.cfg.Cache.Enabled {
		e.cache.Put(key, []byte(comp.Text))
	}
	e.record(ctx, models.UsageRecord{
		UserID: userID, Category: tpl.Category, Model: comp.Model, Source: models.UsageDirect,
		PromptTokens: comp.PromptTokens, CompletionTokens: comp.CompletionTokens,
		TotalTokens: comp.TotalTokens, Cost: comp.Cost,
	})

	return models.ExecuteResult{
		Success:    true,
		Prompt:     prompt,
		Response:   comp.Text,
		TemplateID: tpl.ID,
		Metadata: map[string]string{
			"provider": comp.Provider,
			"model":    comp.Model,
			"tokens":   fmt.Sprint(comp.TotalTokens),
		},
	}
}

// executeOptimized is the cost-saving path: cache short-circuit, then
// near-duplicate folding, then batch enqueue. The caller gets an
// acknowledgement; the combined result arrives on Results.
func (e *Engine) executeOptimized(ctx context.Context, userID string, tpl models.PromptTemplate, query string, input map[string]any) models.ExecuteResult {
	key := cache.Fingerprint(tpl.Category, tpl.ID, query)
	if e.cfg.Cache.Enabled {
		if payload, ok := e.cache.Get(key); ok {
			e.record(ctx, models.UsageRecord{
				UserID: userID, Category: tpl.Category, Source: models.UsageCache,
				SavedCost: e.standaloneCost(),
			})
			return models.ExecuteResult{
				Success:    true,
				Response:   string(payload),
				FromCache:  true,
				TemplateID: tpl.ID,
			}
		}
	}

	if e.cfg.Dedup.Enabled {
		pending := e.batcher.Pending(tpl.Category, tpl.ID)
		if match, ok := e.matcher.Match(pending, query); ok {
			dupID := newRequestID()
			if e.batcher.AttachDuplicate(tpl.Category, match.ID, dupID) {
				e.dedupFolds.Add(1)
				e.record(ctx, models.UsageRecord{
					UserID: userID, Category: tpl.Category, Source: models.UsageDedup,
					SavedCost: e.standaloneCost() * e.cfg.Pricing.DedupSaveRatio,
				})
				return models.ExecuteResult{
					Success:    true,
					Deduped:    true,
					RequestID:  dupID,
					TemplateID: tpl.ID,
					Metadata:   map[string]string{"folded_onto": match.ID},
				}
			}
		}
	}

	values, err := e.resolver.Resolve(ctx, userID, tpl, input)
	if err != nil {
		return models.ExecuteResult{Success: false, Error: err.Error(), TemplateID: tpl.ID}
	}

	stored, flushed := e.batcher.Enqueue(models.BatchedRequest{
		UserID:     userID,
		Category:   tpl.Category,
		TemplateID: tpl.ID,
		RawQuery:   query,
		Variables:  values,
	})

	meta := map[string]string{"status": "queued"}
	if flushed {
		meta["status"] = "flushed"
	}
	return models.ExecuteResult{
		Success:    true,
		RequestID:  stored.ID,
		TemplateID: tpl.ID,
		Metadata:   meta,
	}
}

// handleFlush renders each combined group, invokes the gateway once per
// group, and fans the outcome out to every member and duplicate.
func (e *Engine) handleFlush(groups []models.CombinedRequest) {
	ctx := context.Background()
	for _, g := range groups {
		e.flushGroup(ctx, g)
	}
}

func (e *Engine) flushGroup(ctx context.Context, g models.CombinedRequest) {
	tpl, ok := e.registry.Get(g.TemplateID)
	if !ok {
		e.deliver(g, "", fmt.Sprintf("%v: %s", ErrTemplateNotFound, g.TemplateID))
		return
	}

	values := make(map[string]string, len(g.Variables)+1)
	for k, v := range g.Variables {
		values[k] = v
	}
	if len(g.Members) > 1 {
		// The combined text replaces the single-member query so one
		// invocation answers every member.
		values["user_query"] = g.Query
	}
	prompt := renderer.Render(tpl, values)

	comp, err := e.gateway.Invoke(ctx, gateway.Invocation{Prompt: prompt})
	if err != nil {
		log.Printf("batch %s: upstream failed: %v", g.BatchID, err)
		e.deliver(g, "", fmt.Sprintf("upstream: %v", err))
		return
	}

	if e.cfg.Cache.Enabled {
		e.cache.Put(cache.Fingerprint(g.Category, g.TemplateID, g.Query), []byte(comp.Text))
	}
	e.recordGroup(ctx, g, comp)
	e.deliver(g, comp.Text, "")
}

// recordGroup splits the group's cost evenly across members, remainder on
// the base member, and credits batch savings the same way.
func (e *Engine) recordGroup(ctx context.Context, g models.CombinedRequest, comp gateway.Completion) {
	n := len(g.Members)
	if n == 0 {
		return
	}
	tokensEach := comp.TotalTokens / n
	costEach := comp.Cost / float64(n)
	savedEach := g.SavedCost / float64(n)

	for i, m := range g.Members {
		rec := models.UsageRecord{
			UserID: m.UserID, Category: g.Category, Model: comp.Model, Source: models.UsageBatch,
			TotalTokens: tokensEach, Cost: costEach, SavedCost: savedEach,
		}
		if i == 0 {
			rec.TotalTokens += comp.TotalTokens % n
		}
		e.record(ctx, rec)
	}
}

func (e *Engine) deliver(g models.CombinedRequest, response, errMsg string) {
	now := time.Now()
	wait := 2 * e.cfg.Batch.Timeout
	send := func(requestID, userID string) {
		r := models.BatchResult{
			BatchID:   g.BatchID,
			RequestID: requestID,
			UserID:    userID,
			Response:  response,
			Err:       errMsg,
			Done:      now,
		}
		select {
		case e.results <- r:
			return
		default:
		}
		// Channel full: keep trying off the flush path so a slow consumer
		// delays delivery instead of losing it.
		go func() {
			select {
			case e.results <- r:
			case <-time.After(wait):
				log.Printf("batch %s: no result consumer after %v, dropping delivery for %s", g.BatchID, wait, requestID)
			}
		}()
	}
	for _, m := range g.Members {
		send(m.ID, m.UserID)
		for _, dup := range m.DuplicateIDs {
			send(dup, m.UserID)
		}
	}
}

func (e *Engine) record(ctx context.Context, rec models.UsageRecord) {
	if e.usage == nil {
		return
	}
	if err := e.usage.Record(ctx, rec); err != nil {
		log.Printf("usage record error: %v", err)
	}
}

// standaloneCost estimates what one un-optimized request would have cost.
func (e *Engine) standaloneCost() float64 {
	return float64(e.cfg.Pricing.OverheadTokens) * e.cfg.Pricing.CostPerToken
}

// QuotaStatus returns the user's standing against both quota windows.
func (e *Engine) QuotaStatus(userID string) models.QuotaStatus {
	return e.quota.Check(userID)
}

// CostMetrics returns the user's cost and savings view.
func (e *Engine) CostMetrics(ctx context.Context, userID string) (models.CostMetrics, error) {
	if e.usage == nil {
		return models.CostMetrics{}, errors.New("usage store not configured")
	}
	return e.usage.CostMetrics(ctx, userID)
}

// CacheStats exposes cache counters.
func (e *Engine) CacheStats() models.CacheStats {
	return e.cache.Stats()
}

// AddTemplate registers or replaces a template at runtime.
func (e *Engine) AddTemplate(t models.PromptTemplate) error {
	return e.registry.Add(t)
}

// TemplatesByCategory lists templates for a category.
func (e *Engine) TemplatesByCategory(category string) []models.PromptTemplate {
	return e.registry.ByCategory(category)
}

// ReloadTemplates re-ingests the template source, keeping custom entries.
func (e *Engine) ReloadTemplates() error {
	return e.registry.Reload()
}
