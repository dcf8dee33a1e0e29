package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	rep := &fixedChecker{kind: KindReputation, res: Scored(KindReputation, 0.6, "tld")}
	tls := &fixedChecker{kind: KindTLS, res: Scored(KindTLS, 1.7, "out of range")}
	slow := &fixedChecker{kind: KindAIContent, res: Scored(KindAIContent, 0.95, "phishing"), delay: 500 * time.Millisecond}

	col := NewCollector(nil, map[Kind]CheckerConfig{
		KindReputation: {Weight: 2.0},
		KindAIContent:  {Timeout: 50 * time.Millisecond, Weight: 1.5},
	}, rep, tls, slow, panicChecker{})

	start := time.Now()
	results := col.Collect(ctx, linkEvent("https://example.tk/login"))
	elapsed := time.Since(start)
	assert.Less(elapsed, 400*time.Millisecond)
	assert.Equal(4, len(results))

	assert.Equal(KindReputation, results[0].Kind)
	assert.True(results[0].Usable())
	assert.Equal(0.6, results[0].Score)
	assert.Equal(2.0, results[0].Weight)

	// scores are clamped, and weight defaults to 1
	assert.Equal(1.0, results[1].Score)
	assert.Equal(1.0, results[1].Weight)

	assert.Equal(KindAIContent, results[2].Kind)
	assert.False(results[2].Usable())
	assert.Contains(results[2].Error, ErrTimeout.Error())
	assert.Equal(1.5, results[2].Weight)

	assert.Equal(KindHomograph, results[3].Kind)
	assert.False(results[3].Usable())
	assert.Contains(results[3].Error, "panic")
}

func TestCollectorCancelled(t *testing.T) {
	assert := assert.New(t)

	slow := &fixedChecker{kind: KindTLS, res: Scored(KindTLS, 0.0, "ok"), delay: 300 * time.Millisecond}
	col := NewCollector(nil, nil, slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := col.Collect(ctx, linkEvent("example.com"))
	assert.Equal(1, len(results))
	assert.False(results[0].Usable())
	assert.NotEmpty(results[0].Error)
}

func TestResultHelpers(t *testing.T) {
	assert := assert.New(t)

	assert.True(Scored(KindTLS, 0.3, "").Usable())
	assert.False(Unavailable(KindTLS, ErrTimeout).Usable())
	na := NotApplicable(KindShortener, "not a shortener")
	assert.False(na.Usable())
	assert.Empty(na.Error)
	assert.Equal("shortener: n/a", na.String())
	assert.Equal("tls: 0.30", Scored(KindTLS, 0.3, "").String())
	assert.Equal(0.0, Scored(KindTLS, -1, "").Score)
}

func TestResultOutcome(t *testing.T) {
	assert := assert.New(t)

	timedOut := Unavailable(KindTLS, ErrTimeout)
	assert.Equal("timeout", resultOutcome(timedOut, false, true))
	assert.Equal("panic", resultOutcome(Unavailable(KindTLS, ErrTimeout), true, false))
	assert.Equal("unavailable", resultOutcome(timedOut, false, false))
	assert.Equal("scored", resultOutcome(Scored(KindTLS, 0.3, ""), false, false))
	assert.Equal("", resultOutcome(NotApplicable(KindShortener, "not a shortener"), false, false))
}
