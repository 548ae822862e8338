package metrics

import "github.com/prometheus/client_golang/prometheus"

// Resolver Prometheus metrics.
var (
	ResolverRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querydex",
			Name:      "resolver_requests_total",
			Help:      "Resolver calls by the tier that satisfied them",
		},
		[]string{"source"}, // exact / semantic / cold / live / degraded
	)

	ResolverTierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "querydex",
			Name:      "resolver_tier_duration_seconds",
			Help:      "Per-tier lookup duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 20},
		},
		[]string{"tier"},
	)

	ResolverTierFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "querydex",
			Name:      "resolver_tier_failures_total",
			Help:      "Tier failures absorbed at the tier boundary",
		},
		[]string{"tier"},
	)
)

var resolverMetricsRegistered bool

// RegisterResolverMetrics registers Prometheus resolver metrics. Must be called once from main.
func RegisterResolverMetrics() {
	if resolverMetricsRegistered {
		return
	}
	prometheus.MustRegister(ResolverRequestsTotal)
	prometheus.MustRegister(ResolverTierDuration)
	prometheus.MustRegister(ResolverTierFailuresTotal)
	resolverMetricsRegistered = true
}
