package reasoning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "linkguard_ai_provider_duration_sec",
	Help: "Duration of AI provider API calls",
}, []string{"provider"})

var providerAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_ai_provider_requests",
	Help: "Number of AI provider API calls, by HTTP status code",
}, []string{"provider", "status"})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_ai_verdicts",
	Help: "Number of AI verdicts, by category",
}, []string{"provider", "category"})
