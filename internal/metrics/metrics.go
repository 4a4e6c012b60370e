// Package metrics exposes the engine's Prometheus metrics: one set per
// spec.md §6's extraction_metrics row plus per-stage counters/histograms
// for the chain client, decoder, and store.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/histogram the pipeline emits into.
// A single instance is created at process startup and threaded through
// the components that need it.
type Metrics struct {
	RPCRequests        *prometheus.CounterVec
	RPCRequestDuration  *prometheus.HistogramVec
	RPCRetries         *prometheus.CounterVec

	LogsFetched   *prometheus.CounterVec
	SwapsDecoded  *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec

	UpsertDuration *prometheus.HistogramVec
	UpsertErrors   *prometheus.CounterVec

	GapsComputed *prometheus.CounterVec

	SchedulerLockFailures prometheus.Counter
	PoolsEnqueued         prometheus.Counter

	PipelineDuration *prometheus.HistogramVec
}

// New registers and returns a Metrics bundle on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "rpc", Name: "requests_total",
			Help: "RPC calls issued, by method and outcome.",
		}, []string{"method", "outcome"}),
		RPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dexingest", Subsystem: "rpc", Name: "request_duration_seconds",
			Help: "RPC call latency, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RPCRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "rpc", Name: "retries_total",
			Help: "RPC retry attempts, by method.",
		}, []string{"method"}),
		LogsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "decode", Name: "logs_fetched_total",
			Help: "Raw logs fetched, by chain and dex.",
		}, []string{"chain", "dex"}),
		SwapsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "decode", Name: "swaps_decoded_total",
			Help: "Swap records successfully decoded, by chain and dex.",
		}, []string{"chain", "dex"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "decode", Name: "errors_total",
			Help: "Logs that failed to decode and were skipped, by chain and dex.",
		}, []string{"chain", "dex"}),
		UpsertDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dexingest", Subsystem: "store", Name: "upsert_duration_seconds",
			Help: "Upsert latency, by table kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		UpsertErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "store", Name: "upsert_errors_total",
			Help: "Upsert failures, by table kind.",
		}, []string{"kind"}),
		GapsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "blockindex", Name: "gaps_computed_total",
			Help: "Gaps returned by ComputeGaps, by pool slug.",
		}, []string{"pool"}),
		SchedulerLockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "scheduler", Name: "lock_failures_total",
			Help: "Scheduler ticks that failed to acquire the global lock.",
		}),
		PoolsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dexingest", Subsystem: "scheduler", Name: "pools_enqueued_total",
			Help: "Pool pipeline tasks enqueued across all scheduler ticks.",
		}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dexingest", Subsystem: "orchestrator", Name: "pipeline_duration_seconds",
			Help:    "Per-pool pipeline wall-clock duration.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"pool"}),
	}

	reg.MustRegister(
		m.RPCRequests, m.RPCRequestDuration, m.RPCRetries,
		m.LogsFetched, m.SwapsDecoded, m.DecodeErrors,
		m.UpsertDuration, m.UpsertErrors,
		m.GapsComputed,
		m.SchedulerLockFailures, m.PoolsEnqueued,
		m.PipelineDuration,
	)
	return m
}
