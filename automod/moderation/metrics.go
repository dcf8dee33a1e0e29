package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var moderationActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_moderation_actions",
	Help: "Number of moderation decisions, by action",
}, []string{"action"})

var stateConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linkguard_moderation_state_conflicts",
	Help: "Number of compare-and-set conflicts on moderation records",
})

var persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "linkguard_moderation_persistence_failures",
	Help: "Number of moderation decisions which fell back because the store was unavailable",
})
