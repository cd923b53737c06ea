// Package metrics records pipeline counters and latencies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Recorder receives pipeline events. Implementations must be safe for concurrent use.
type Recorder interface {
	// IngestionFinished records a source reaching a terminal status
	IngestionFinished(status string, fragments int)

	// QueryFinished records a query outcome and its duration
	QueryFinished(outcome string, d time.Duration)

	// EmbeddingCall records one provider embedding call
	EmbeddingCall(hint string, truncated bool)

	// RetrievalObserved records one similarity search
	RetrievalObserved(d time.Duration, results int)
}

// Nop returns a Recorder that discards events
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) IngestionFinished(string, int)        {}
func (nopRecorder) QueryFinished(string, time.Duration)  {}
func (nopRecorder) EmbeddingCall(string, bool)           {}
func (nopRecorder) RetrievalObserved(time.Duration, int) {}

var _ Recorder = (*Prometheus)(nil)

// Prometheus is a Recorder backed by client_golang collectors
type Prometheus struct {
	ingestions        *prometheus.CounterVec
	fragments         prometheus.Counter
	queries           *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	embeddingCalls    *prometheus.CounterVec
	truncations       prometheus.Counter
	retrievalDuration prometheus.Histogram
	retrievalResults  prometheus.Histogram
}

// NewPrometheus creates the collectors and registers them with reg
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sercha_rag",
			Name:      "ingestions_total",
			Help:      "Ingested sources by final status.",
		}, []string{"status"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sercha_rag",
			Name:      "fragments_persisted_total",
			Help:      "Fragments persisted by ingestion.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sercha_rag",
			Name:      "queries_total",
			Help:      "Queries by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sercha_rag",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		embeddingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sercha_rag",
			Name:      "embedding_calls_total",
			Help:      "Embedding provider calls by task hint.",
		}, []string{"task"}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sercha_rag",
			Name:      "embedding_truncations_total",
			Help:      "Embedding inputs truncated to the token ceiling.",
		}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sercha_rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Similarity search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sercha_rag",
			Name:      "retrieval_results",
			Help:      "Fragments returned per similarity search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
	reg.MustRegister(
		p.ingestions, p.fragments, p.queries, p.queryDuration,
		p.embeddingCalls, p.truncations, p.retrievalDuration, p.retrievalResults,
	)
	return p
}

func (p *Prometheus) IngestionFinished(status string, fragments int) {
	p.ingestions.WithLabelValues(status).Inc()
	p.fragments.Add(float64(fragments))
}

func (p *Prometheus) QueryFinished(outcome string, d time.Duration) {
	p.queries.WithLabelValues(outcome).Inc()
	p.queryDuration.Observe(d.Seconds())
}

func (p *Prometheus) EmbeddingCall(hint string, truncated bool) {
	if hint == "" {
		hint = "none"
	}
	p.embeddingCalls.WithLabelValues(hint).Inc()
	if truncated {
		p.truncations.Inc()
	}
}

func (p *Prometheus) RetrievalObserved(d time.Duration, results int) {
	p.retrievalDuration.Observe(d.Seconds())
	p.retrievalResults.Observe(float64(results))
}
