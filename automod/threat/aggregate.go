package threat

import (
	"fmt"
	"math"
	"time"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/signals"
)

// Minimum number of usable signal results for an assessment above Caution
const DefaultMinQuorum = 2

const (
	NoteInsufficientEvidence = "insufficient evidence: tier capped at caution"
	NoteTrusted              = "trusted domain"
	NoteListed               = "blocklisted domain"
)

// Combined verdict on a single link. Not persisted, beyond the enforcement decision it leads to.
type Assessment struct {
	URL     string           `json:"url"`
	Domain  string           `json:"domain"`
	Score   float64          `json:"score"`
	Tier    Tier             `json:"tier"`
	Results []signals.Result `json:"results"`
	Notes   []string         `json:"notes,omitempty"`
	// an allowlist hit forced this assessment to Safe
	Trusted bool `json:"trusted,omitempty"`
	// a blocklist hit set the score floor
	Listed               bool      `json:"listed,omitempty"`
	InsufficientEvidence bool      `json:"insufficient_evidence,omitempty"`
	DecidedAt            time.Time `json:"decided_at"`
}

// Number of results which counted towards the score
func (a *Assessment) Usable() int {
	n := 0
	for _, r := range a.Results {
		if r.Usable() {
			n++
		}
	}
	return n
}

func (a *Assessment) String() string {
	return fmt.Sprintf("%s tier=%s score=%.2f", a.URL, a.Tier, a.Score)
}

type Aggregator struct {
	Thresholds Thresholds
	MinQuorum  int
	// for tests; defaults to time.Now
	Now func() time.Time
}

func NewAggregator(th Thresholds) (*Aggregator, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		Thresholds: th,
		MinQuorum:  DefaultMinQuorum,
	}, nil
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Combines checker results for a link in to an Assessment: a weighted mean over usable results, mapped to a tier.
//
// A trusted (allowlisted) result overrides everything else. A blocklist hit raises the score to its own. With fewer than MinQuorum usable results, the tier is capped at Caution.
func (a *Aggregator) Aggregate(le *event.LinkEvent, results []signals.Result) *Assessment {
	out := &Assessment{
		URL:       le.URL,
		Domain:    le.Domain,
		Results:   results,
		DecidedAt: a.now(),
	}

	for _, r := range results {
		if r.Trusted {
			out.Trusted = true
			out.Score = 0
			out.Tier = Safe
			out.Notes = append(out.Notes, NoteTrusted)
			return out
		}
	}

	var sum, weights float64
	usable := 0
	for _, r := range results {
		if !r.Usable() {
			continue
		}
		w := r.Weight
		if w <= 0 {
			w = 1.0
		}
		sum += w * r.Score
		weights += w
		usable++
	}
	if weights > 0 {
		out.Score = math.Max(0, math.Min(1, sum/weights))
	}
	for _, r := range results {
		if r.Usable() && r.Listed {
			out.Score = math.Max(out.Score, r.Score)
			out.Listed = true
		}
	}
	if out.Listed {
		out.Notes = append(out.Notes, NoteListed)
	}
	out.Tier = a.Thresholds.Tier(out.Score)

	quorum := a.MinQuorum
	if quorum <= 0 {
		quorum = DefaultMinQuorum
	}
	if usable < quorum {
		out.InsufficientEvidence = true
		out.Notes = append(out.Notes, NoteInsufficientEvidence)
		if out.Tier > Caution {
			out.Tier = Caution
		}
	}
	return out
}
