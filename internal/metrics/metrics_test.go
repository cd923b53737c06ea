package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.IngestionFinished("completed", 3)
	p.IngestionFinished("completed", 2)
	p.IngestionFinished("failed", 0)
	p.QueryFinished(OutcomeFallback, 10*time.Millisecond)
	p.EmbeddingCall("RETRIEVAL_QUERY", true)
	p.EmbeddingCall("", false)
	p.RetrievalObserved(time.Millisecond, 4)

	if got := testutil.ToFloat64(p.ingestions.WithLabelValues("completed")); got != 2 {
		t.Errorf("expected 2 completed ingestions, got %v", got)
	}
	if got := testutil.ToFloat64(p.fragments); got != 5 {
		t.Errorf("expected 5 fragments, got %v", got)
	}
	if got := testutil.ToFloat64(p.queries.WithLabelValues(OutcomeFallback)); got != 1 {
		t.Errorf("expected 1 fallback query, got %v", got)
	}
	if got := testutil.ToFloat64(p.embeddingCalls.WithLabelValues("none")); got != 1 {
		t.Errorf("expected unhinted call under 'none', got %v", got)
	}
	if got := testutil.ToFloat64(p.truncations); got != 1 {
		t.Errorf("expected 1 truncation, got %v", got)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("expected gathered metrics, got %d (%v)", n, err)
	}
}

func TestNop(t *testing.T) {
	r := Nop()
	r.IngestionFinished("completed", 1)
	r.QueryFinished(OutcomeAnswered, time.Second)
	r.EmbeddingCall("", false)
	r.RetrievalObserved(time.Second, 0)
}
