package models

import "time"

// Priority partitions batch queues by urgency class.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// BatchedRequest is one pending request waiting in a batch queue. It is
// created on enqueue, consumed exactly once by a flush, and never mutated
// afterwards. DuplicateIDs holds requests folded onto this one by the
// deduplicator; they receive the same result when the batch flushes.
type BatchedRequest struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Category     string            `json:"category"`
	TemplateID   string            `json:"template_id"`
	RawQuery     string            `json:"raw_query"`
	Variables    map[string]string `json:"variables,omitempty"`
	Priority     Priority          `json:"priority"`
	EnqueuedAt   time.Time         `json:"enqueued_at"`
	DuplicateIDs []string          `json:"duplicate_ids,omitempty"`
}

// CombinedRequest is the flush-time merge of one or more batched requests
// sharing a template and category. Members preserve enqueue order; the
// first member is the base of the combined query.
type CombinedRequest struct {
	BatchID    string            `json:"batch_id"`
	Category   string            `json:"category"`
	TemplateID string            `json:"template_id"`
	Query      string            `json:"query"`
	Variables  map[string]string `json:"variables,omitempty"`
	Members    []BatchedRequest  `json:"members"`
	SavedCost  float64           `json:"saved_cost"`
}

// ExecuteOptions tune a single engine execution.
type ExecuteOptions struct {
	TemplateID     string `json:"template_id,omitempty"`
	Language       string `json:"language,omitempty"`
	EnableBatching bool   `json:"enable_batching,omitempty"`
}

// ExecuteResult is always returned by Execute, success or not.
type ExecuteResult struct {
	Success    bool              `json:"success"`
	Prompt     string            `json:"prompt,omitempty"`
	Response   string            `json:"response,omitempty"`
	BatchID    string            `json:"batch_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	FromCache  bool              `json:"from_cache"`
	Deduped    bool              `json:"deduped"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	TemplateID string            `json:"template_id,omitempty"`
}

// BatchResult delivers the outcome of a flushed batch to every member
// request, duplicates included.
type BatchResult struct {
	BatchID   string    `json:"batch_id"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Response  string    `json:"response"`
	Err       string    `json:"error,omitempty"`
	Done      time.Time `json:"done"`
}
