// Package metrics has the prometheus metrics of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLookup = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailtrust_lookup_duration_seconds",
			Help:    "Duration of external lookups.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 4, 6, 10},
		},
		[]string{
			"kind",   // mx, a, dbl, rdap, whois, mailbox
			"result", // ok, notfound, error, timeout
		},
	)
	metricVerdict = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtrust_inspect_verdict_total",
			Help: "Message inspections by verdict.",
		},
		[]string{
			"verdict", // safe, warning, phishing, clone, spam
		},
	)
	metricVerify = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtrust_verify_total",
			Help: "Address verifications by list and source.",
		},
		[]string{
			"list",
			"source",
		},
	)
	metricCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtrust_cache_total",
			Help: "Verification cache lookups.",
		},
		[]string{
			"result", // hit, miss
		},
	)
)

// LookupObserve records the duration and result of an external lookup
func LookupObserve(kind, result string, start time.Time) {
	metricLookup.WithLabelValues(kind, result).Observe(time.Since(start).Seconds())
}

// VerdictInc counts an inspection verdict
func VerdictInc(verdict string) {
	metricVerdict.WithLabelValues(verdict).Inc()
}

// VerifyInc counts an address verification
func VerifyInc(list, source string) {
	metricVerify.WithLabelValues(list, source).Inc()
}

// CacheInc counts a cache hit or miss
func CacheInc(hit bool) {
	if hit {
		metricCache.WithLabelValues("hit").Inc()
	} else {
		metricCache.WithLabelValues("miss").Inc()
	}
}
