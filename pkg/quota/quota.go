package quota

import (
	"errors"
	"sync"
	"time"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// ErrQuotaExceeded is returned at admission when either quota window is
// already full.
var ErrQuotaExceeded = errors.New("quota exceeded")

// nearLimitRatio marks a window as near its limit at 80% utilization.
const nearLimitRatio = 0.8

// Tracker enforces per-user daily and monthly request budgets. Usage is
// derived on demand from a bounded per-user event history rather than
// maintained counters, so window "resets" are implicit: old events simply
// age out of the calendar day or month.
type Tracker struct {
	mu           sync.Mutex
	events       map[string][]time.Time
	daily        int
	monthly      int
	historyLimit int
	now          func() time.Time
}

// New creates a Tracker with the given window quotas. historyLimit bounds
// the retained events per user (default 1000).
func New(daily, monthly, historyLimit int) *Tracker {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	return &Tracker{
		events:       make(map[string][]time.Time),
		daily:        daily,
		monthly:      monthly,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// Track appends one request event for the user, dropping the oldest events
// once the history exceeds its bound.
func (t *Tracker) Track(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := append(t.events[userID], t.now().UTC())
	if overflow := len(history) - t.historyLimit; overflow > 0 {
		history = history[overflow:]
	}
	t.events[userID] = history
}

// Check computes the user's standing against both windows. The computation
// is read-only over the event history, so there is no reset race.
func (t *Tracker) Check(userID string) models.QuotaStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var daily, monthly int
	for _, ts := range t.events[userID] {
		if !ts.Before(monthStart) {
			monthly++
			if !ts.Before(dayStart) {
				daily++
			}
		}
	}

	return models.QuotaStatus{
		UserID:       userID,
		DailyUsed:    daily,
		DailyQuota:   t.daily,
		MonthlyUsed:  monthly,
		MonthlyQuota: t.monthly,
		IsNearLimit:  nearLimit(daily, t.daily) || nearLimit(monthly, t.monthly),
		IsOverLimit:  overLimit(daily, t.daily) || overLimit(monthly, t.monthly),
		ResetTime:    dayStart.AddDate(0, 0, 1),
	}
}

// Admit returns ErrQuotaExceeded when the user is already over either
// window. Called before any cache, dedup, or batch work happens.
func (t *Tracker) Admit(userID string) error {
	if t.Check(userID).IsOverLimit {
		return ErrQuotaExceeded
	}
	return nil
}

func nearLimit(used, quota int) bool {
	return quota > 0 && float64(used) >= nearLimitRatio*float64(quota)
}

func overLimit(used, quota int) bool {
	return quota > 0 && used >= quota
}
