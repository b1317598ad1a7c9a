package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StageEmbed     = "embed"
	StageQuery     = "query"
	StageUpsert    = "upsert"
	StageCancelled = "cancelled"
)

// Metrics groups the Prometheus instruments of the memory engine.
type Metrics struct {
	registry *prometheus.Registry

	DegradedReads    *prometheus.CounterVec
	WriteFailures    *prometheus.CounterVec
	RecordsWritten   prometheus.Counter
	RecordsPurged    *prometheus.CounterVec
	RetrievedResults prometheus.Histogram
	RetrievalLatency prometheus.Histogram
	EmbeddingCache   *prometheus.CounterVec
	IndexedTurns     prometheus.Counter
}

// NewMetrics builds instruments on a private registry so several engines can
// coexist in one process.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DegradedReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_reads_total",
			Help:      "Read path calls that fell back to no memory augmentation, by failing stage.",
		}, []string{"stage"}),
		WriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Turns that could not be stored, by failing stage.",
		}, []string{"stage"}),
		RecordsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Memory records upserted.",
		}),
		RecordsPurged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purges_total",
			Help:      "Purge operations by scope.",
		}, []string{"scope"}),
		RetrievedResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_results",
			Help:      "Results returned per retrieval after the score floor.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		RetrievalLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_latency_ms",
			Help:      "End to end retrieval latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		EmbeddingCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		IndexedTurns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_turns_total",
			Help:      "Turns made searchable by the background indexer.",
		}),
	}
}

func (m *Metrics) ObserveRetrieval(d time.Duration, results int) {
	m.RetrievalLatency.Observe(float64(d.Milliseconds()))
	m.RetrievedResults.Observe(float64(results))
}

func (m *Metrics) Degraded(stage string) {
	m.DegradedReads.WithLabelValues(stage).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
