package batch

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// Flusher receives the combined groups of a flushed queue. The engine owns
// the gateway call and result delivery.
type Flusher func(groups []models.CombinedRequest)

// Options configure a Batcher.
type Options struct {
	Size           int
	Timeout        time.Duration
	OverheadTokens int
	CostPerToken   float64
}

type queueKey struct {
	category string
	priority models.Priority
}

// Batcher groups pending requests into queues keyed by (category,
// priority). A queue flushes when it reaches Size or when its oldest
// member has waited at least Timeout. Flush drains a queue atomically:
// no request is both flushed and left behind, and enqueues racing a flush
// land in the fresh queue.
type Batcher struct {
	mu      sync.Mutex
	queues  map[queueKey][]*models.BatchedRequest
	opts    Options
	flusher Flusher

	enqueued atomic.Int64
	flushed  atomic.Int64 // original requests flushed
	combined atomic.Int64 // downstream groups produced

	savedMu sync.Mutex
	saved   float64
}

func (b *Batcher) addSaved(v float64) {
	b.savedMu.Lock()
	b.saved += v
	b.savedMu.Unlock()
}

func (b *Batcher) savedTotal() float64 {
	b.savedMu.Lock()
	defer b.savedMu.Unlock()
	return b.saved
}

// New creates a Batcher. Zero option fields take the defaults
// (size 15, timeout 20s).
func New(opts Options, flusher Flusher) *Batcher {
	if opts.Size <= 0 {
		opts.Size = 15
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Batcher{
		queues:  make(map[queueKey][]*models.BatchedRequest),
		opts:    opts,
		flusher: flusher,
	}
}

// Enqueue adds a request to its queue, assigning an ID and priority if
// unset, and flushes the queue immediately when it reaches the size
// threshold. It returns the stored request (with ID) and whether a flush
// was triggered.
func (b *Batcher) Enqueue(req models.BatchedRequest) (models.BatchedRequest, bool) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Priority == "" {
		req.Priority = PriorityFor(req.Category)
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}

	key := queueKey{req.Category, req.Priority}
	stored := req

	b.mu.Lock()
	b.queues[key] = append(b.queues[key], &stored)
	b.enqueued.Add(1)
	var drained []*models.BatchedRequest
	if len(b.queues[key]) >= b.opts.Size {
		drained = b.queues[key]
		delete(b.queues, key)
	}
	b.mu.Unlock()

	if drained == nil {
		return stored, false
	}
	b.dispatch(drained)
	return stored, true
}

// AttachDuplicate folds a duplicate onto a pending request. Returns false
// if the request already flushed.
func (b *Batcher) AttachDuplicate(category string, pendingID, duplicateID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, queue := range b.queues {
		if key.category != category {
			continue
		}
		for _, r := range queue {
			if r.ID == pendingID {
				r.DuplicateIDs = append(r.DuplicateIDs, duplicateID)
				return true
			}
		}
	}
	return false
}

// Pending returns a snapshot of not-yet-flushed requests for a category
// and template, in enqueue order per queue.
func (b *Batcher) Pending(category, templateID string) []models.BatchedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BatchedRequest
	for key, queue := range b.queues {
		if key.category != category {
			continue
		}
		for _, r := range queue {
			if r.TemplateID == templateID {
				out = append(out, *r)
			}
		}
	}
	return out
}

// Start runs the periodic flush until the context is cancelled. Any queue
// whose oldest member has waited at least the timeout is flushed
// regardless of size, which bounds worst-case latency for low-traffic
// categories to under two timeout periods.
func (b *Batcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(b.opts.Timeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				b.FlushAll()
				return
			case <-ticker.C:
				b.flushAged()
			}
		}
	}()
}

func (b *Batcher) flushAged() {
	now := time.Now()

	b.mu.Lock()
	var aged [][]*models.BatchedRequest
	for key, queue := range b.queues {
		if len(queue) == 0 {
			continue
		}
		if now.Sub(queue[0].EnqueuedAt) >= b.opts.Timeout {
			aged = append(aged, queue)
			delete(b.queues, key)
		}
	}
	b.mu.Unlock()

	for _, queue := range aged {
		b.dispatch(queue)
	}
}

// FlushAll drains every queue immediately. Used on shutdown so that no
// enqueued request is silently dropped.
func (b *Batcher) FlushAll() {
	b.mu.Lock()
	var all [][]*models.BatchedRequest
	for key, queue := range b.queues {
		if len(queue) > 0 {
			all = append(all, queue)
		}
		delete(b.queues, key)
	}
	b.mu.Unlock()

	for _, queue := range all {
		b.dispatch(queue)
	}
}

func (b *Batcher) dispatch(queue []*models.BatchedRequest) {
	groups := b.combine(queue)
	b.flushed.Add(int64(len(queue)))
	b.combined.Add(int64(len(groups)))
	if b.flusher != nil {
		b.flusher(groups)
	}
}

// combine regroups a drained queue by (templateID, category) and merges
// each group of size > 1 into a single representative request. The first
// member (FIFO) is the base; member queries are concatenated with a
// delimiter and the variable map carries the batch size and combined text.
func (b *Batcher) combine(queue []*models.BatchedRequest) []models.CombinedRequest {
	type fineKey struct{ templateID, category string }
	order := make([]fineKey, 0, len(queue))
	groups := make(map[fineKey][]models.BatchedRequest)
	for _, r := range queue {
		k := fineKey{r.TemplateID, r.Category}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], *r)
	}

	out := make([]models.CombinedRequest, 0, len(order))
	for _, k := range order {
		members := groups[k]
		cr := models.CombinedRequest{
			BatchID:    uuid.NewString(),
			Category:   k.category,
			TemplateID: k.templateID,
			Members:    members,
		}
		if len(members) == 1 {
			cr.Query = members[0].RawQuery
			cr.Variables = members[0].Variables
			out = append(out, cr)
			continue
		}

		queries := make([]string, 0, len(members))
		for _, m := range members {
			queries = append(queries, m.RawQuery)
		}
		combinedText := strings.Join(queries, " | ")

		vars := make(map[string]string, len(members[0].Variables)+2)
		for name, val := range members[0].Variables {
			vars[name] = val
		}
		vars["batch_size"] = strconv.Itoa(len(members))
		vars["combined_queries"] = combinedText

		cr.Query = combinedText
		cr.Variables = vars
		// N requests became 1 invocation; savings are an accounting
		// estimate based on fixed per-request overhead, not a measurement.
		cr.SavedCost = float64(len(members)-1) * float64(b.opts.OverheadTokens) * b.opts.CostPerToken
		b.addSaved(cr.SavedCost)
		out = append(out, cr)
	}
	return out
}

// PriorityFor maps a category to its static priority class. Health-critical
// categories flush in their own high queues; chat and lifestyle traffic is
// low priority; everything else is medium.
func PriorityFor(category string) models.Priority {
	switch category {
	case "symptom_analysis", "health_analysis", "medication_check":
		return models.PriorityHigh
	case "general_chat", "lifestyle", "motivation":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// Stats reports batching counters for the optimization report.
type Stats struct {
	Enqueued  int64
	Flushed   int64
	Combined  int64
	SavedCost float64
	Pending   int
}

// Stats returns a snapshot of batching counters.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	pending := 0
	for _, q := range b.queues {
		pending += len(q)
	}
	b.mu.Unlock()
	return Stats{
		Enqueued:  b.enqueued.Load(),
		Flushed:   b.flushed.Load(),
		Combined:  b.combined.Load(),
		SavedCost: b.savedTotal(),
		Pending:   pending,
	}
}
