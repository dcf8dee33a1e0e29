package signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkeleton(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("paypal", Skeleton("pаypal")) // cyrillic a
	assert.Equal("paypal", Skeleton("PAYPAL"))
	assert.Equal("google", Skeleton("g00gle"))
	assert.Equal("microsoft", Skeleton("rnicrosoft"))
	assert.Equal("cafe", Skeleton("café"))
	assert.Equal("discord", Skeleton("dіscord")) // cyrillic i
}

func TestLabelScripts(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"latin"}, LabelScripts("paypal-2"))
	assert.Equal([]string{"latin", "cyrillic"}, LabelScripts("pаypal"))
	assert.Equal([]string{"cyrillic"}, LabelScripts("пример"))
	assert.Equal([]string{"cjk"}, LabelScripts("東京タワー"))
	assert.Empty(LabelScripts("123"))
}

func TestHomographChecker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	hc := &HomographChecker{Sets: testSets(t)}

	fixtures := []struct {
		url   string
		score float64
	}{
		// genuine brand domains
		{url: "https://paypal.com/signin", score: 0.0},
		{url: "https://www.paypal.com", score: 0.0},
		// same label on another suffix is not a lookalike
		{url: "https://paypal.co.uk", score: 0.0},
		// cyrillic "а" in paypal: mixed scripts
		{url: "https://pаypal.com", score: ScoreHomographCollisionMixed},
		// all-latin lookalike
		{url: "https://g00gle.com", score: ScoreHomographCollision},
		{url: "https://dlscord.com", score: 0.0},
		// mixed scripts, no brand collision
		{url: "https://bаnk-login.com", score: ScoreMixedScript},
		// brand as subdomain of another domain
		{url: "https://paypal.com.account-verify.tk/login", score: ScoreBrandSubdomain},
		{url: "https://secure.discord.com.gift-nitro.ru", score: ScoreBrandSubdomain},
		// all-cyrillic domains are fine
		{url: "https://пример.рф", score: 0.0},
		{url: "https://example.org", score: 0.0},
	}
	for _, fix := range fixtures {
		res := hc.Check(ctx, linkEvent(fix.url))
		assert.True(res.Usable(), fix.url)
		assert.Equal(fix.score, res.Score, fix.url)
	}
}
