package engine

import "github.com/sid0791/Health-AI-V1-sub003/pkg/models"

// Reporting heuristic knobs. The exact coefficients are tunable, not
// load-bearing: the score must stay bounded and monotonic in each input.
const (
	reportBase   = 0.60
	reportCap    = 0.95
	reportTarget = 0.80

	cacheWeight = 0.15
	dedupWeight = 0.10
	batchWeight = 0.10
)

// OptimizationReport derives a blended score from the observed cache hit
// rate, the deduplication rate, and batching efficiency, with rule-based
// recommendations when the score falls short of the target. This is a
// diagnostic output only; it never feeds back into engine decisions.
func (e *Engine) OptimizationReport() models.OptimizationReport {
	cs := e.cache.Stats()
	bs := e.batcher.Stats()
	folds := e.dedupFolds.Load()

	var hitRate float64
	if lookups := cs.Hits + cs.Misses; lookups > 0 {
		hitRate = float64(cs.Hits) / float64(lookups)
	}

	var dedupRate float64
	if seen := folds + bs.Enqueued; seen > 0 {
		dedupRate = float64(folds) / float64(seen)
	}

	var batchEff float64
	if bs.Flushed > 0 {
		batchEff = 1 - float64(bs.Combined)/float64(bs.Flushed)
	}

	rate := reportBase + cacheWeight*hitRate + dedupWeight*dedupRate + batchWeight*batchEff
	if rate > reportCap {
		rate = reportCap
	}

	return models.OptimizationReport{
		CacheHitRate:       hitRate,
		DeduplicationRate:  dedupRate,
		BatchingEfficiency: batchEff,
		OptimizationRate:   rate,
		Recommendations:    recommendations(rate, hitRate, dedupRate, batchEff),
	}
}

// recommendations fires progressively stronger suggestions as the score
// falls short of the target.
func recommendations(rate, hitRate, dedupRate, batchEff float64) []string {
	if rate >= reportTarget {
		return nil
	}

	var recs []string
	if hitRate < 0.3 {
		recs = append(recs, "cache hit rate is low: consider a longer TTL or broader query normalization")
	}
	if dedupRate < 0.1 {
		recs = append(recs, "few near-duplicates are folding: consider lowering the similarity threshold")
	}
	if batchEff < 0.3 {
		recs = append(recs, "batches rarely combine: consider a larger batch window or routing more categories through batching")
	}
	if rate < reportTarget-0.1 {
		recs = append(recs, "optimization rate is well below target: enable batching on high-volume categories")
	}
	if len(recs) == 0 {
		recs = append(recs, "optimization rate is slightly below target: review per-category traffic for batching candidates")
	}
	return recs
}
