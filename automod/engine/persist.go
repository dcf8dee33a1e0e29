package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkguard/linkguard/automod/countstore"
	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/flagstore"
	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/setstore"
	"github.com/linkguard/linkguard/automod/threat"
)

// Records counters, learned domain flags, and link history for a processed message. Failures are logged, and never change the outcome.
func (eng *Engine) persistEffects(ctx context.Context, logger *slog.Logger, msg *event.MessageEvent, links []*event.LinkEvent, out *Outcome) {
	for i, le := range links {
		a := out.Assessments[i]
		if err := eng.persistCounters(ctx, msg, le, a); err != nil {
			logger.Warn("failed to persist counters", "domain", le.Domain, "err", err)
		}
		if err := eng.learnDomain(ctx, logger, le, a); err != nil {
			logger.Warn("failed to persist domain flags", "domain", le.Domain, "err", err)
		}
		if eng.History != nil {
			entry := &moderation.HistoryEntry{
				EventID:   msg.EventID,
				MessageID: msg.MessageID,
				UserID:    msg.UserID,
				ChannelID: msg.ChannelID,
				URL:       le.URL,
				Domain:    le.Domain,
				Score:     a.Score,
				Tier:      a.Tier,
				Action:    out.Action,
				CreatedAt: a.DecidedAt,
			}
			if err := eng.History.AddHistory(ctx, entry); err != nil {
				logger.Warn("failed to persist link history", "url", le.URL, "err", err)
			}
		}
	}
}

func (eng *Engine) persistCounters(ctx context.Context, msg *event.MessageEvent, le *event.LinkEvent, a *threat.Assessment) error {
	if eng.Counters == nil {
		return nil
	}
	domain := le.RegistrableDomain()
	if err := eng.Counters.Increment(ctx, countstore.CounterDomainTier, domain+"/"+a.Tier.String()); err != nil {
		return err
	}
	if err := eng.Counters.IncrementDistinct(ctx, countstore.DistinctDomainPosters, domain, msg.UserID); err != nil {
		return err
	}
	if a.Tier == threat.Danger {
		if err := eng.Counters.Increment(ctx, countstore.CounterUserDanger, msg.UserID); err != nil {
			return err
		}
		if msg.ChannelID != "" {
			if err := eng.Counters.Increment(ctx, countstore.CounterChannelDanger, msg.ChannelID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Adds high-confidence Danger domains to the learned blacklist, unless an admin has reviewed the domain.
func (eng *Engine) learnDomain(ctx context.Context, logger *slog.Logger, le *event.LinkEvent, a *threat.Assessment) error {
	if eng.Flags == nil || eng.LearnThreshold <= 0 {
		return nil
	}
	if a.Tier != threat.Danger || a.Trusted || a.InsufficientEvidence || a.Score < eng.LearnThreshold {
		return nil
	}
	domain := le.RegistrableDomain()
	flags, err := eng.Flags.Get(ctx, domain)
	if err != nil {
		return err
	}
	for _, f := range flags {
		if f == flagstore.FlagReviewed || f == flagstore.FlagBlacklisted {
			return nil
		}
	}
	logger.Info("adding domain to learned blacklist", "domain", domain, "score", a.Score)
	learnedDomainCount.Inc()
	return eng.Flags.Add(ctx, domain, []string{flagstore.FlagBlacklisted})
}

// Counts and flags recorded for a single domain
type DomainReport struct {
	Domain     string         `json:"domain"`
	Trusted    bool           `json:"trusted"`
	Blacklist  bool           `json:"blacklisted"`
	Flags      []string       `json:"flags"`
	TierCounts map[string]int `json:"tier_counts"`
	Posters    int            `json:"distinct_posters"`
	Generated  time.Time      `json:"generated_at"`
}

// Summarizes what the engine has recorded about a domain (normalized to its registrable domain).
func (eng *Engine) DomainReport(ctx context.Context, domain string) (*DomainReport, error) {
	le, err := event.LinkEventForURL(domain, time.Now())
	if err != nil {
		return nil, fmt.Errorf("invalid domain %q: %w", domain, err)
	}
	reg := le.RegistrableDomain()
	rep := &DomainReport{
		Domain:     reg,
		Flags:      []string{},
		TierCounts: make(map[string]int),
		Generated:  time.Now().UTC(),
	}
	if eng.Sets != nil {
		if rep.Trusted, err = eng.Sets.MatchDomain(ctx, setstore.SetTrustedDomains, le.Domain); err != nil {
			return nil, err
		}
		if rep.Blacklist, err = eng.Sets.MatchDomain(ctx, setstore.SetBlacklistDomains, le.Domain); err != nil {
			return nil, err
		}
	}
	if eng.Flags != nil {
		flags, err := eng.Flags.Get(ctx, reg)
		if err != nil {
			return nil, err
		}
		rep.Flags = append(rep.Flags, flags...)
	}
	if eng.Counters != nil {
		for _, tier := range []threat.Tier{threat.Safe, threat.Caution, threat.Suspicious, threat.Danger} {
			n, err := eng.Counters.GetCount(ctx, countstore.CounterDomainTier, reg+"/"+tier.String(), countstore.PeriodTotal)
			if err != nil {
				return nil, err
			}
			rep.TierCounts[tier.String()] = n
		}
		n, err := eng.Counters.GetCountDistinct(ctx, countstore.DistinctDomainPosters, reg, countstore.PeriodTotal)
		if err != nil {
			return nil, err
		}
		rep.Posters = n
	}
	return rep, nil
}
