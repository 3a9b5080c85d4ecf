package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamCalls tracks JSON-RPC calls per provider and method.
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_upstream_calls_total",
			Help: "Total number of upstream JSON-RPC calls",
		},
		[]string{"provider", "method"},
	)

	// UpstreamErrors tracks upstream failures per provider and error type.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_upstream_errors_total",
			Help: "Total number of upstream call failures",
		},
		[]string{"provider", "error_type"},
	)

	// UpstreamLatency tracks upstream call latency.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempo_upstream_latency_seconds",
			Help:    "Upstream JSON-RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// ChunkRetries tracks chunk fetch retries by classified failure kind.
	ChunkRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_chunk_retries_total",
			Help: "Total number of chunk fetch retries by failure classification",
		},
		[]string{"kind"},
	)

	// ChunkSplits tracks chunks split after a result-too-large response.
	ChunkSplits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempo_chunk_splits_total",
			Help: "Total number of chunks split because the result set was too large",
		},
	)

	// RecordsRetrieved tracks records returned to callers after deduplication.
	RecordsRetrieved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempo_records_retrieved_total",
			Help: "Total number of deduplicated records returned by retrievals",
		},
	)

	// DuplicateRecords tracks records discarded by deduplication.
	DuplicateRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempo_duplicate_records_total",
			Help: "Total number of duplicate records discarded during aggregation",
		},
	)

	// ChainHead tracks the head block number last observed from the provider.
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempo_chain_head_block",
			Help: "Head block number last observed from the provider",
		},
	)

	// ModelCacheHits tracks time-model cache hits and misses.
	ModelCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_time_model_cache_total",
			Help: "Time model cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// ChunkCacheHits tracks chunk-result memoization hits and misses.
	ChunkCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_chunk_cache_total",
			Help: "Chunk result cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// LookupCacheHits tracks head/timestamp lookup cache hits and misses.
	LookupCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempo_lookup_cache_total",
			Help: "Head and timestamp lookup cache hits and misses",
		},
		[]string{"kind", "outcome"},
	)
)
