package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkguard/linkguard/automod/cachestore"
	"github.com/linkguard/linkguard/automod/countstore"
	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/flagstore"
	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/setstore"
	"github.com/linkguard/linkguard/automod/signals"
	"github.com/linkguard/linkguard/automod/threat"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("engine")

const (
	DefaultMaxLinks        = 10
	DefaultLinkParallelism = 4
	DefaultOutcomeTTL      = 24 * time.Hour
	// cache name for stored outcomes, keyed by event id
	outcomeCacheName = "outcome"
)

// runtime for analyzing posted links, applying moderation, and recording the results.
//
// Collector, Aggregator and Moderator are required. The stores and Notifier are optional (nil disables that side effect), though the signal checkers may depend on the same Sets and Flags.
type Engine struct {
	Logger     *slog.Logger
	Collector  *signals.Collector
	Aggregator *threat.Aggregator
	Moderator  *moderation.Moderator
	History    moderation.HistoryStore
	Counters   countstore.CountStore
	Sets       setstore.SetStore
	Flags      flagstore.FlagStore
	// used to de-duplicate replayed events
	Cache    cachestore.CacheStore
	Notifier Notifier
	Notices  *Notices

	// links beyond this many in a single message are ignored
	MaxLinks        int
	LinkParallelism int
	// Danger assessments with at least this score add the domain to the learned blacklist. Zero disables learning.
	LearnThreshold float64
	OutcomeTTL     time.Duration
}

// What the gateway should do about a message
type Outcome struct {
	EventID   string            `json:"event_id"`
	UserID    string            `json:"user_id"`
	Action    moderation.Action `json:"action"`
	Notice    string            `json:"notice,omitempty"`
	MuteUntil *time.Time        `json:"mute_until,omitempty"`
	Warnings  int               `json:"warnings"`
	// one per analyzed link, in message order
	Assessments []*threat.Assessment `json:"assessments"`
	// this event id was already processed; the stored outcome is returned and nothing was re-applied
	Replayed bool `json:"replayed,omitempty"`
}

// Runs every signal checker against a single link, and aggregates the results. Never fails: checker problems are reflected in the returned assessment.
func (eng *Engine) AnalyzeLink(ctx context.Context, le *event.LinkEvent) *threat.Assessment {
	ctx, span := tracer.Start(ctx, "AnalyzeLink")
	defer span.End()

	results := eng.Collector.Collect(ctx, le)
	a := eng.Aggregator.Aggregate(le, results)
	span.SetAttributes(attribute.String("domain", le.Domain), attribute.String("tier", a.Tier.String()))
	linkTierCount.WithLabelValues(a.Tier.String()).Inc()
	eng.Logger.Debug("link assessed", "url", le.URL, "tier", a.Tier, "score", a.Score, "usable", a.Usable())
	return a
}

// Processes a chat message: extracts links, analyzes them concurrently, and applies moderation for the most severe one.
//
// Checker and persistence problems never surface as errors; they degrade the decision instead. Errors are returned only for invalid input or unexpected panics.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *event.MessageEvent) (out *Outcome, err error) {
	// similar to an HTTP server, we want to recover any panics from processing
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("message processing exception", "err", r, "event", msg.EventID, "user", msg.UserID)
			eventErrorCount.WithLabelValues("message").Inc()
			out = nil
			err = fmt.Errorf("message processing panic: %v", r)
		}
	}()

	if msg.UserID == "" {
		return nil, fmt.Errorf("message event missing user id")
	}

	ctx, span := tracer.Start(ctx, "ProcessMessage")
	defer span.End()
	span.SetAttributes(attribute.String("event", msg.EventID), attribute.String("user", msg.UserID))

	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("message").Inc()

	logger := eng.Logger.With("event", msg.EventID, "user", msg.UserID, "channel", msg.ChannelID)

	if prev := eng.replayedOutcome(ctx, msg.EventID); prev != nil {
		logger.Info("replayed event, returning stored outcome", "action", prev.Action)
		replayCount.Inc()
		return prev, nil
	}

	links := eng.extractLinks(msg)
	out = &Outcome{
		EventID:     msg.EventID,
		UserID:      msg.UserID,
		Action:      moderation.ActionAllow,
		Assessments: make([]*threat.Assessment, len(links)),
	}
	if len(links) == 0 {
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(eng.linkParallelism())
	for i, le := range links {
		g.Go(func() error {
			out.Assessments[i] = eng.AnalyzeLink(ctx, le)
			return nil
		})
	}
	_ = g.Wait()

	worst := worstAssessment(out.Assessments)
	mod, merr := eng.Moderator.Moderate(ctx, msg.UserID, worst)
	out.Action = mod.Action
	if mod.Record != nil {
		out.Warnings = mod.Record.Warnings
		out.MuteUntil = mod.Record.MuteUntil
	}
	if merr != nil {
		logger.Error("moderation could not be completed", "url", worst.URL, "tier", worst.Tier, "err", merr)
		eventErrorCount.WithLabelValues("moderation").Inc()
		eng.notifyFailure(ctx, msg, worst, merr)
	}
	logger.Info("message processed", "links", len(links), "worst", worst.Tier, "score", worst.Score, "action", out.Action, "warnings", out.Warnings)

	if eng.Notices != nil {
		notice, err := eng.Notices.Render(msg, worst, out)
		if err != nil {
			logger.Error("rendering notice", "err", err)
		}
		out.Notice = notice
	}

	eng.persistEffects(ctx, logger, msg, links, out)
	if out.Action.RemovesMessage() {
		eng.notifyEnforcement(ctx, msg, worst, out)
	}
	eng.storeOutcome(ctx, out)
	actionCount.WithLabelValues(string(out.Action)).Inc()
	return out, nil
}

func (eng *Engine) linkParallelism() int {
	if eng.LinkParallelism > 0 {
		return eng.LinkParallelism
	}
	return DefaultLinkParallelism
}

func (eng *Engine) extractLinks(msg *event.MessageEvent) []*event.LinkEvent {
	maxLinks := eng.MaxLinks
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}
	var out []*event.LinkEvent
	for le := range msg.Links() {
		if len(out) >= maxLinks {
			eng.Logger.Warn("too many links in message, ignoring the rest", "event", msg.EventID, "max", maxLinks)
			break
		}
		out = append(out, le)
	}
	return out
}

// Picks the assessment which drives moderation: highest tier, then highest score. Ties keep message order.
func worstAssessment(l []*threat.Assessment) *threat.Assessment {
	var worst *threat.Assessment
	for _, a := range l {
		if worst == nil || a.Tier > worst.Tier || (a.Tier == worst.Tier && a.Score > worst.Score) {
			worst = a
		}
	}
	return worst
}

func (eng *Engine) replayedOutcome(ctx context.Context, eventID string) *Outcome {
	if eng.Cache == nil || eventID == "" {
		return nil
	}
	raw, err := eng.Cache.Get(ctx, outcomeCacheName, eventID)
	if err != nil {
		eng.Logger.Warn("outcome cache read failed", "event", eventID, "err", err)
		return nil
	}
	if raw == "" {
		return nil
	}
	var out Outcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		eng.Logger.Warn("corrupt cached outcome", "event", eventID, "err", err)
		return nil
	}
	out.Replayed = true
	return &out
}

func (eng *Engine) storeOutcome(ctx context.Context, out *Outcome) {
	if eng.Cache == nil || out.EventID == "" {
		return
	}
	b, err := json.Marshal(out)
	if err != nil {
		eng.Logger.Error("encoding outcome", "event", out.EventID, "err", err)
		return
	}
	ttl := eng.OutcomeTTL
	if ttl <= 0 {
		ttl = DefaultOutcomeTTL
	}
	if err := eng.Cache.Set(ctx, outcomeCacheName, out.EventID, string(b), ttl); err != nil {
		eng.Logger.Warn("outcome cache write failed", "event", out.EventID, "err", err)
	}
}

func (eng *Engine) notifyEnforcement(ctx context.Context, msg *event.MessageEvent, worst *threat.Assessment, out *Outcome) {
	if eng.Notifier == nil {
		return
	}
	if err := eng.Notifier.SendEnforcement(ctx, msg, worst, out); err != nil {
		eng.Logger.Error("failed to deliver admin notification", "event", msg.EventID, "err", err)
	}
}

func (eng *Engine) notifyFailure(ctx context.Context, msg *event.MessageEvent, worst *threat.Assessment, merr error) {
	if eng.Notifier == nil {
		return
	}
	reason := "could not complete moderation action"
	if errors.Is(merr, moderation.ErrStateConflict) {
		reason = "could not complete moderation action (concurrent update)"
	}
	if err := eng.Notifier.SendFailure(ctx, msg, worst, reason); err != nil {
		eng.Logger.Error("failed to deliver admin notification", "event", msg.EventID, "err", err)
	}
}
