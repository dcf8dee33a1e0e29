package signals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/linkguard/linkguard/automod/event"
)

type Kind string

const (
	KindReputation    Kind = "reputation"
	KindTLS           Kind = "tls"
	KindDomainAge     Kind = "domain-age"
	KindShortener     Kind = "shortener"
	KindHomograph     Kind = "homograph"
	KindAIContent     Kind = "ai-content"
	KindWebReputation Kind = "web-reputation"
)

var AllKinds = []Kind{KindReputation, KindTLS, KindDomainAge, KindShortener, KindHomograph, KindAIContent, KindWebReputation}

var (
	ErrTimeout       = errors.New("checker timed out")
	ErrNotApplicable = errors.New("checker not applicable")
)

// Output of one checker for one link.
//
// If Available is false, Score is meaningless and the result must not count towards aggregation. Error is set for failures, and empty for results which are simply not applicable.
type Result struct {
	Kind      Kind          `json:"kind"`
	Score     float64       `json:"score"`
	Available bool          `json:"available"`
	Weight    float64       `json:"weight"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	// allowlist override: the aggregator forces Safe when any result has this set
	Trusted bool `json:"trusted,omitempty"`
	// blocklist hit: the aggregate score is raised to at least this result's score
	Listed bool     `json:"listed,omitempty"`
	Cached bool     `json:"cached,omitempty"`
	Flags  []string `json:"flags,omitempty"`
	Detail string   `json:"detail,omitempty"`
}

// Whether this result counts towards the aggregate score
func (r Result) Usable() bool {
	return r.Available && r.Error == "" && !math.IsNaN(r.Score)
}

// A checker rates a single link. Implementations must return promptly once ctx is done, and should not panic (though panics are recovered by the Collector).
type Checker interface {
	Kind() Kind
	Check(ctx context.Context, le *event.LinkEvent) Result
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(1, score))
}

// Helper for an available result
func Scored(kind Kind, score float64, detail string, flags ...string) Result {
	return Result{
		Kind:      kind,
		Score:     clamp(score),
		Available: true,
		Detail:    detail,
		Flags:     flags,
	}
}

// Helper for a blocklist hit
func Listed(kind Kind, detail string, flags ...string) Result {
	r := Scored(kind, ScoreBlacklisted, detail, flags...)
	r.Listed = true
	return r
}

// Helper for a failed (unavailable) result
func Unavailable(kind Kind, err error) Result {
	r := Result{Kind: kind}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Helper for a result from a checker which has nothing to say about this link. This is not an error.
func NotApplicable(kind Kind, detail string) Result {
	return Result{
		Kind:   kind,
		Detail: detail,
	}
}

func (r Result) String() string {
	if !r.Available {
		if r.Error != "" {
			return fmt.Sprintf("%s: unavailable (%s)", r.Kind, r.Error)
		}
		return fmt.Sprintf("%s: n/a", r.Kind)
	}
	return fmt.Sprintf("%s: %.2f", r.Kind, r.Score)
}
