// Package metrics exposes Prometheus collectors for the ingest and query paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "siteinsight"

var (
	// IngestTotal counts ingest requests. Labels: result (success, fetch, parse, embedding, synthesis, error)
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Total number of homepage ingests by result",
		},
		[]string{"result"},
	)

	// QueryTotal counts answer requests. Labels: result
	QueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_total",
			Help:      "Total number of questions answered by result",
		},
		[]string{"result"},
	)

	// StageDuration tracks time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// AIRequestsTotal counts model calls. Labels: task (embed, insight, answer), result (success, error)
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Total number of AI provider calls",
		},
		[]string{"task", "result"},
	)

	// EmbeddingCacheTotal counts cache lookups. Labels: layer (lru, db), result (hit, miss)
	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding_cache",
			Name:      "lookups_total",
			Help:      "Total number of embedding cache lookups",
		},
		[]string{"layer", "result"},
	)

	// ChunksReplaced counts chunks written by ReplaceChunks. Labels: store
	ChunksReplaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vectorstore",
			Name:      "chunks_replaced_total",
			Help:      "Total number of chunks installed by replacements",
		},
		[]string{"store"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"job", "result"},
	)
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
