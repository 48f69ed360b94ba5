package dedup

import (
	"testing"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"what should i eat", "what should i eat", 1},
		{"what should i eat", "What should I EAT?", 1},
		{"a b c d", "a b c e", 3.0 / 5.0},
		{"apples", "oranges", 0},
		{"", "", 1},
		{"something", "", 0},
	}
	for _, tc := range tests {
		if got := Jaccard(tc.a, tc.b); got != tc.want {
			t.Errorf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMatchThresholdBoundary(t *testing.T) {
	m := New(0.8)
	pending := []models.BatchedRequest{
		{ID: "r1", RawQuery: "a b c d e f g h"},
	}

	// 8 of 10 words shared: similarity 0.8, folds.
	if _, ok := m.Match(pending, "a b c d e f g h i j"); !ok {
		t.Error("similarity at threshold should fold")
	}

	// 7 of 10 shared: 0.7, does not fold.
	if _, ok := m.Match(pending, "a b c d e f g x y z"); ok {
		t.Error("similarity below threshold should not fold")
	}
}

func TestMatchScansInOrder(t *testing.T) {
	m := New(0.5)
	pending := []models.BatchedRequest{
		{ID: "first", RawQuery: "sleep better at night"},
		{ID: "second", RawQuery: "sleep better at night time"},
	}

	got, ok := m.Match(pending, "sleep better at night")
	if !ok || got.ID != "first" {
		t.Errorf("expected first pending match, got %v %v", got.ID, ok)
	}
}

func TestMatchNoCandidates(t *testing.T) {
	m := New(0)
	if m.Threshold() != DefaultThreshold {
		t.Errorf("expected default threshold, got %v", m.Threshold())
	}
	if _, ok := m.Match(nil, "anything"); ok {
		t.Error("no pending requests should never match")
	}
}
