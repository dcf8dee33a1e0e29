package signals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checkerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "linkguard_checker_duration_sec",
	Help:    "Duration of signal checker calls, including cache lookups",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"kind"})

var checkerResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_checker_results",
	Help: "Number of signal checker results, by outcome (scored, unavailable, timeout, panic)",
}, []string{"kind", "outcome"})

var checkerCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_checker_cache_hits",
	Help: "Number of signal checker results served from cache",
}, []string{"kind"})

var checkerCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_checker_cache_misses",
	Help: "Number of signal checker cache misses",
}, []string{"kind"})

var dnsblQueries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_dnsbl_queries",
	Help: "Number of DNS blocklist queries, by zone and outcome (listed, clear, error)",
}, []string{"zone", "outcome"})

var rdapLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_rdap_lookups",
	Help: "Number of RDAP domain lookups, by HTTP status code",
}, []string{"status"})
