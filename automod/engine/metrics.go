package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "linkguard_event_duration_sec",
	Help: "Total duration of event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_event_errors",
	Help: "Number of events which failed processing, or could not complete moderation",
}, []string{"type"})

var replayCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linkguard_event_replays",
	Help: "Number of replayed events answered from the outcome cache",
})

var linkTierCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_link_tiers",
	Help: "Number of links assessed, by tier",
}, []string{"tier"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_message_actions",
	Help: "Number of messages processed, by final action",
}, []string{"action"})

var learnedDomainCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linkguard_learned_blacklist_domains",
	Help: "Number of domains added to the learned blacklist",
})
