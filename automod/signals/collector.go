package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkguard/linkguard/automod/event"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("signals")

const DefaultTimeout = 3 * time.Second

// Per-checker settings applied by the Collector
type CheckerConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Weight  float64       `yaml:"weight"`
}

// Runs a set of checkers concurrently against a link, and gathers whatever results complete within each checker's timeout.
type Collector struct {
	Logger   *slog.Logger
	Checkers []Checker
	Config   map[Kind]CheckerConfig
	// used when a checker has no configured timeout
	DefaultTimeout time.Duration
}

func NewCollector(logger *slog.Logger, config map[Kind]CheckerConfig, checkers ...Checker) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		Logger:         logger.With("component", "signals"),
		Checkers:       checkers,
		Config:         config,
		DefaultTimeout: DefaultTimeout,
	}
}

func (c *Collector) settings(kind Kind) (time.Duration, float64) {
	cfg := c.Config[kind]
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = c.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// configured weights are validated positive; unconfigured checkers weigh 1
	weight := cfg.Weight
	if weight <= 0 {
		weight = 1.0
	}
	return timeout, weight
}

// Returns one result per configured checker, in checker order. Never blocks longer than the largest checker timeout (or until ctx is done).
func (c *Collector) Collect(ctx context.Context, le *event.LinkEvent) []Result {
	out := make([]Result, len(c.Checkers))
	var wg sync.WaitGroup
	for i, chk := range c.Checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = c.runOne(ctx, chk, le)
		}()
	}
	wg.Wait()
	return out
}

func (c *Collector) runOne(ctx context.Context, chk Checker, le *event.LinkEvent) Result {
	kind := chk.Kind()
	timeout, weight := c.settings(kind)

	ctx, span := tracer.Start(ctx, "check")
	span.SetAttributes(attribute.String("kind", string(kind)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	// buffered, so an abandoned checker goroutine can still complete and exit
	ch := make(chan Result, 1)
	panicked := false
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.Logger.Error("signal checker panic", "kind", kind, "url", le.URL, "err", r)
				panicked = true
				ch <- Unavailable(kind, fmt.Errorf("checker panic: %v", r))
			}
		}()
		ch <- chk.Check(ctx, le)
	}()

	var res Result
	timedOut, returned := false, false
	select {
	case res = <-ch:
		returned = true
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
			timedOut = true
		}
		res = Unavailable(kind, err)
	}

	res.Kind = kind
	res.Weight = weight
	res.Latency = time.Since(start)
	if res.Available {
		res.Score = clamp(res.Score)
	}
	checkerDuration.WithLabelValues(string(kind)).Observe(res.Latency.Seconds())
	// panicked is only safe to read once the checker goroutine has sent
	outcome := resultOutcome(res, returned && panicked, timedOut)
	if outcome != "" {
		checkerResults.WithLabelValues(string(kind), outcome).Inc()
	}
	if outcome == "unavailable" {
		c.Logger.Debug("signal unavailable", "kind", kind, "url", le.URL, "err", res.Error)
	}
	span.SetAttributes(attribute.Bool("available", res.Available), attribute.Float64("score", res.Score))
	return res
}

// Metric label for a finished check. Each check counts under exactly one outcome; not-applicable results count under none.
func resultOutcome(res Result, panicked, timedOut bool) string {
	switch {
	case panicked:
		return "panic"
	case timedOut:
		return "timeout"
	case res.Usable():
		return "scored"
	case res.Error != "":
		return "unavailable"
	default:
		return ""
	}
}
