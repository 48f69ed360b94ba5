package models

import "time"

// UsageSource records which path produced (or avoided) an AI invocation.
type UsageSource string

const (
	UsageDirect UsageSource = "direct"
	UsageCache  UsageSource = "cache"
	UsageDedup  UsageSource = "dedup"
	UsageBatch  UsageSource = "batch"
)

// UsageRecord tracks one request's token usage and cost attribution.
type UsageRecord struct {
	ID               int64       `json:"id"`
	UserID           string      `json:"user_id"`
	Category         string      `json:"category"`
	Model            string      `json:"model"`
	Source           UsageSource `json:"source"`
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	Cost             float64     `json:"cost"`
	SavedCost        float64     `json:"saved_cost"`
	CreatedAt        time.Time   `json:"created_at"`
}

// UsageSummary aggregates usage grouped by user and category.
type UsageSummary struct {
	UserID       string  `json:"user_id"`
	Category     string  `json:"category"`
	RequestCount int     `json:"request_count"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	TotalSaved   float64 `json:"total_saved"`
}

// CostMetrics is the per-user cost and savings view exposed to callers.
type CostMetrics struct {
	UserID        string  `json:"user_id"`
	RequestCount  int     `json:"request_count"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
	CacheSaved    float64 `json:"cache_saved"`
	DedupSaved    float64 `json:"dedup_saved"`
	BatchSaved    float64 `json:"batch_saved"`
	TotalSaved    float64 `json:"total_saved"`
	CacheHits     int     `json:"cache_hits"`
	DedupedCount  int     `json:"deduped_count"`
	BatchedCount  int     `json:"batched_count"`
	DirectCount   int     `json:"direct_count"`
}

// QuotaStatus reports a user's standing against both quota windows.
type QuotaStatus struct {
	UserID       string    `json:"user_id"`
	DailyUsed    int       `json:"daily_used"`
	DailyQuota   int       `json:"daily_quota"`
	MonthlyUsed  int       `json:"monthly_used"`
	MonthlyQuota int       `json:"monthly_quota"`
	IsNearLimit  bool      `json:"is_near_limit"`
	IsOverLimit  bool      `json:"is_over_limit"`
	ResetTime    time.Time `json:"reset_time"`
}

// OptimizationReport is a monitoring view of how well the cost levers are
// performing. It never feeds back into engine decisions.
type OptimizationReport struct {
	CacheHitRate       float64  `json:"cache_hit_rate"`
	DeduplicationRate  float64  `json:"deduplication_rate"`
	BatchingEfficiency float64  `json:"batching_efficiency"`
	OptimizationRate   float64  `json:"optimization_rate"`
	Recommendations    []string `json:"recommendations,omitempty"`
}
