package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_upstream_calls_total",
			Help: "Total upstream API calls",
		},
		[]string{"api", "endpoint", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pitwall_upstream_latency_seconds",
			Help:    "Upstream API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api", "endpoint"},
	)

	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_refreshes_total",
			Help: "Store refresh operations by domain and outcome",
		},
		[]string{"domain", "outcome"},
	)

	CacheRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_cache_rows_written_total",
			Help: "Rows written to the local cache by table",
		},
		[]string{"table"},
	)
)

// Refresh outcome labels.
const (
	OutcomeFetched  = "fetched"
	OutcomeFresh    = "fresh"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)
