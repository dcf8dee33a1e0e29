package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/linkguard/linkguard/automod/cachestore"
	"github.com/linkguard/linkguard/automod/countstore"
	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/flagstore"
	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/modstore"
	"github.com/linkguard/linkguard/automod/setstore"
	"github.com/linkguard/linkguard/automod/signals"
	"github.com/linkguard/linkguard/automod/threat"
)

// A checker which scores links from a fixed table keyed by registrable domain. Domains not in the table are not applicable. For tests and demos.
type StaticChecker struct {
	CheckerKind signals.Kind
	Scores      map[string]float64
}

var _ signals.Checker = (*StaticChecker)(nil)

func (c *StaticChecker) Kind() signals.Kind {
	return c.CheckerKind
}

func (c *StaticChecker) Check(ctx context.Context, le *event.LinkEvent) signals.Result {
	score, ok := c.Scores[le.RegistrableDomain()]
	if !ok {
		return signals.NotApplicable(c.CheckerKind, "not in table")
	}
	return signals.Scored(c.CheckerKind, score, "static score for "+le.RegistrableDomain())
}

// Builds an Engine wired to in-memory stores, with a real reputation checker and a static "AI" checker:
//
//   - google.com is trusted
//   - evil-site.com is blacklisted (Danger), and also rated 0.95
//   - shady-store.com is rated 0.9, for an aggregate of 0.5 (Suspicious)
//   - meh-site.com is rated 0.4, for an aggregate of 0.25 (Caution)
//   - anything else only gets the reputation signal, so lacks quorum
func EngineTestFixture() *Engine {
	logger := slog.Default()
	sets := setstore.NewMemSetStore()
	_ = sets.SetValues(setstore.SetTrustedDomains, []string{"google.com", "*.gov.uk"})
	_ = sets.SetValues(setstore.SetBlacklistDomains, []string{"evil-site.com"})
	_ = sets.SetValues(setstore.SetSuspiciousTLDs, []string{"tk", "ml"})
	flags := flagstore.NewMemFlagStore()
	store := modstore.NewMemStore()

	rep := &signals.ReputationChecker{Sets: sets, Flags: flags, Logger: logger}
	ai := &StaticChecker{
		CheckerKind: signals.KindAIContent,
		Scores: map[string]float64{
			"google.com":      0.95,
			"evil-site.com":   0.95,
			"shady-store.com": 0.9,
			"meh-site.com":    0.4,
		},
	}
	agg, _ := threat.NewAggregator(threat.DefaultThresholds())
	policy := moderation.DefaultPolicy()
	notices, err := NewNotices(nil, policy.MuteThreshold)
	if err != nil {
		panic(err)
	}
	return &Engine{
		Logger:         logger,
		Collector:      signals.NewCollector(logger, nil, rep, ai),
		Aggregator:     agg,
		Moderator:      moderation.NewModerator(store, policy, logger),
		History:        store,
		Counters:       countstore.NewMemCountStore(),
		Sets:           sets,
		Flags:          flags,
		Cache:          cachestore.NewMemCacheStore(1000, time.Hour),
		Notices:        notices,
		LearnThreshold: 0.9,
	}
}
