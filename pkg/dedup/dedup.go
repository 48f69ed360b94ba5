package dedup

import (
	"strings"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/cache"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// DefaultThreshold folds two queries only when they are lexically very
// close. False negatives are acceptable; false positives are bounded by
// keeping the threshold high.
const DefaultThreshold = 0.8

// Matcher detects near-duplicate queries among pending requests.
type Matcher struct {
	threshold float64
}

// New creates a Matcher. A non-positive threshold falls back to the
// default.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold reports the configured similarity threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match returns the first pending request whose query is similar enough to
// fold the candidate onto, scanning in enqueue order.
func (m *Matcher) Match(pending []models.BatchedRequest, query string) (models.BatchedRequest, bool) {
	for _, p := range pending {
		if Jaccard(p.RawQuery, query) >= m.threshold {
			return p, true
		}
	}
	return models.BatchedRequest{}, false
}

// Jaccard computes |A∩B| / |A∪B| over the normalized word sets of two
// queries. Returns 1 for two empty queries.
func Jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(cache.Normalize(s)) {
		set[w] = true
	}
	return set
}
