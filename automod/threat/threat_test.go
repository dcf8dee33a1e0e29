package threat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/signals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLink() *event.LinkEvent {
	return &event.LinkEvent{
		URL:    "https://example.com/",
		Domain: "example.com",
	}
}

func TestTierBoundaries(t *testing.T) {
	assert := assert.New(t)
	th := DefaultThresholds()
	assert.NoError(th.Validate())

	fixtures := []struct {
		score float64
		tier  Tier
	}{
		{score: 0.0, tier: Safe},
		{score: 0.1999, tier: Safe},
		{score: 0.2, tier: Caution},
		{score: 0.4999, tier: Caution},
		{score: 0.5, tier: Suspicious},
		{score: 0.7999, tier: Suspicious},
		{score: 0.8, tier: Danger},
		{score: 1.0, tier: Danger},
	}
	for _, f := range fixtures {
		assert.Equal(f.tier, th.Tier(f.score), f.score)
	}
}

func TestTierMonotonic(t *testing.T) {
	assert := assert.New(t)
	th := DefaultThresholds()

	prev := Safe
	for i := 0; i <= 1000; i++ {
		tier := th.Tier(float64(i) / 1000)
		assert.GreaterOrEqual(int(tier), int(prev))
		prev = tier
	}
	assert.Equal(Danger, prev)
}

func TestThresholdsValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(Thresholds{Caution: 0.1, Suspicious: 0.3, Danger: 1.0}.Validate())
	assert.Error(Thresholds{Caution: 0, Suspicious: 0.5, Danger: 0.8}.Validate())
	assert.Error(Thresholds{Caution: 0.2, Suspicious: 0.5, Danger: 1.1}.Validate())
	assert.Error(Thresholds{Caution: 0.5, Suspicious: 0.5, Danger: 0.8}.Validate())
	assert.Error(Thresholds{Caution: 0.2, Suspicious: 0.9, Danger: 0.8}.Validate())

	_, err := NewAggregator(Thresholds{Caution: 0.6, Suspicious: 0.5, Danger: 0.8})
	assert.Error(err)
}

func TestTierText(t *testing.T) {
	assert := assert.New(t)

	b, err := json.Marshal(map[string]Tier{"tier": Suspicious})
	assert.NoError(err)
	assert.Equal(`{"tier":"suspicious"}`, string(b))

	var out map[string]Tier
	assert.NoError(json.Unmarshal(b, &out))
	assert.Equal(Suspicious, out["tier"])

	_, err = ParseTier("extreme")
	assert.Error(err)
	assert.Equal("tier(7)", Tier(7).String())
}

func TestAggregateWeightedMean(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agg, err := NewAggregator(DefaultThresholds())
	require.NoError(err)
	agg.Now = func() time.Time { return now }

	results := []signals.Result{
		{Kind: signals.KindReputation, Score: 1.0, Available: true, Weight: 3},
		{Kind: signals.KindTLS, Score: 0.0, Available: true, Weight: 1},
		{Kind: signals.KindAIContent, Error: "AI provider: rate limited", Weight: 5},
		{Kind: signals.KindShortener, Weight: 1},
	}
	a := agg.Aggregate(testLink(), results)
	assert.InDelta(0.75, a.Score, 0.0001)
	assert.Equal(Suspicious, a.Tier)
	assert.False(a.InsufficientEvidence)
	assert.False(a.Trusted)
	assert.Equal(2, a.Usable())
	assert.Equal(now, a.DecidedAt)
	assert.Equal("https://example.com/", a.URL)
	assert.Len(a.Results, 4)

	// zero weights count as 1
	results = []signals.Result{
		{Kind: signals.KindReputation, Score: 0.9, Available: true},
		{Kind: signals.KindTLS, Score: 0.7, Available: true},
	}
	a = agg.Aggregate(testLink(), results)
	assert.InDelta(0.8, a.Score, 0.0001)
	assert.Equal(Danger, a.Tier)
}

func TestAggregateTrusted(t *testing.T) {
	assert := assert.New(t)

	agg, _ := NewAggregator(DefaultThresholds())
	le := &event.LinkEvent{URL: "https://google.com/", Domain: "google.com"}
	results := []signals.Result{
		{Kind: signals.KindReputation, Score: 0, Available: true, Trusted: true, Weight: 1},
		{Kind: signals.KindAIContent, Score: 0.95, Available: true, Weight: 10, Flags: []string{"ai:phishing"}},
		{Kind: signals.KindWebReputation, Score: 1.0, Available: true, Weight: 10},
	}
	a := agg.Aggregate(le, results)
	assert.Equal(Safe, a.Tier)
	assert.Equal(0.0, a.Score)
	assert.True(a.Trusted)
	assert.Contains(a.Notes, NoteTrusted)
}

func TestAggregateQuorum(t *testing.T) {
	assert := assert.New(t)

	agg, _ := NewAggregator(DefaultThresholds())

	// a single strong signal is capped
	results := []signals.Result{
		{Kind: signals.KindAIContent, Score: 0.95, Available: true, Weight: 1},
		{Kind: signals.KindTLS, Error: "checker timed out after 3s"},
		{Kind: signals.KindDomainAge, Error: "RDAP lookup failed"},
	}
	a := agg.Aggregate(testLink(), results)
	assert.InDelta(0.95, a.Score, 0.0001)
	assert.Equal(Caution, a.Tier)
	assert.True(a.InsufficientEvidence)
	assert.Contains(a.Notes, NoteInsufficientEvidence)

	// a low score is not raised by the cap
	results[0].Score = 0.1
	a = agg.Aggregate(testLink(), results)
	assert.Equal(Safe, a.Tier)
	assert.True(a.InsufficientEvidence)

	// nothing usable at all
	a = agg.Aggregate(testLink(), nil)
	assert.Equal(0.0, a.Score)
	assert.Equal(Safe, a.Tier)
	assert.True(a.InsufficientEvidence)

	// custom quorum
	agg.MinQuorum = 1
	results[0].Score = 0.95
	a = agg.Aggregate(testLink(), results)
	assert.Equal(Danger, a.Tier)
	assert.False(a.InsufficientEvidence)
}

func TestAggregateListed(t *testing.T) {
	assert := assert.New(t)

	agg, _ := NewAggregator(DefaultThresholds())

	// default checker weights, established domain with a valid certificate
	results := []signals.Result{
		signals.Listed(signals.KindReputation, "domain is blacklisted", "blacklisted"),
		signals.Scored(signals.KindTLS, 0.0, "valid"),
		signals.Scored(signals.KindDomainAge, 0.0, "registered 2009"),
		signals.Scored(signals.KindHomograph, 0.0, ""),
		signals.Scored(signals.KindAIContent, 0.05, "benign"),
		signals.Scored(signals.KindWebReputation, 0.05, ""),
	}
	for i, w := range []float64{1.5, 0.8, 1.0, 1.2, 1.5, 0.8} {
		results[i].Weight = w
	}
	a := agg.Aggregate(testLink(), results)
	assert.Equal(1.0, a.Score)
	assert.Equal(Danger, a.Tier)
	assert.True(a.Listed)
	assert.Contains(a.Notes, NoteListed)

	// reputation and homograph only
	a = agg.Aggregate(testLink(), []signals.Result{results[0], results[3]})
	assert.Equal(Danger, a.Tier)

	// quorum still applies
	a = agg.Aggregate(testLink(), results[:1])
	assert.Equal(Caution, a.Tier)
	assert.True(a.InsufficientEvidence)

	// the allowlist wins over a blocklist
	trusted := signals.Scored(signals.KindReputation, 0.0, "trusted domain")
	trusted.Trusted = true
	a = agg.Aggregate(testLink(), []signals.Result{trusted, results[0], results[1]})
	assert.Equal(Safe, a.Tier)
	assert.False(a.Listed)

	// unlisted results never raise the score
	a = agg.Aggregate(testLink(), results[1:])
	assert.False(a.Listed)
	assert.Equal(Safe, a.Tier)
}
