package moderation

import (
	"testing"
	"time"

	"github.com/linkguard/linkguard/automod/threat"

	"github.com/stretchr/testify/assert"
)

func assessment(tier threat.Tier) *threat.Assessment {
	return &threat.Assessment{URL: "https://evil-site.com/", Domain: "evil-site.com", Tier: tier}
}

func TestPolicyNonDanger(t *testing.T) {
	assert := assert.New(t)
	p := DefaultPolicy()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{UserID: "u1", Warnings: 1, UpdatedAt: now.Add(-time.Hour), Version: 1}

	next, dec := p.Apply(rec, assessment(threat.Safe), now)
	assert.Equal(ActionAllow, dec.Action)
	assert.False(dec.Changed)
	assert.Equal(rec, next)
	assert.NotSame(rec, next)

	_, dec = p.Apply(rec, assessment(threat.Caution), now)
	assert.Equal(ActionAllow, dec.Action)
	assert.Equal([]string{NoteCaution}, dec.Notes)
	assert.False(dec.Changed)

	next, dec = p.Apply(rec, assessment(threat.Suspicious), now)
	assert.Equal(ActionPublicWarning, dec.Action)
	assert.False(dec.Changed)
	assert.Equal(1, next.Warnings)
}

func TestPolicyEscalation(t *testing.T) {
	assert := assert.New(t)
	p := DefaultPolicy()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewRecord("u1")
	danger := assessment(threat.Danger)

	expected := []Action{
		ActionRemoveAndWarn,
		ActionRemoveAndWarn,
		ActionRemoveAndMute,
		ActionRemoveAndWarn,
		ActionRemoveAndWarn,
		ActionRemoveAndBan,
		ActionRemoveAndBan,
	}
	for i, act := range expected {
		now = now.Add(time.Minute)
		next, dec := p.Apply(rec, danger, now)
		assert.Equal(act, dec.Action, "offense %d", i+1)
		assert.GreaterOrEqual(next.Warnings, rec.Warnings)
		rec = next
		switch i + 1 {
		case 3:
			assert.Equal(StateMuted, rec.State(now))
			assert.Equal(now.Add(15*24*time.Hour), *rec.MuteUntil)
		case 6:
			assert.True(dec.Changed)
			assert.True(rec.Banned)
			assert.Nil(rec.MuteUntil)
		case 7:
			// terminal
			assert.False(dec.Changed)
		}
	}
	assert.Equal(6, rec.Warnings)
	assert.Equal(StateBanned, rec.State(now))

	// banned users are removed, whatever they post
	_, dec := p.Apply(rec, assessment(threat.Safe), now)
	assert.Equal(ActionRemoveAndBan, dec.Action)
}

func TestPolicyMuteExpiry(t *testing.T) {
	assert := assert.New(t)
	p := DefaultPolicy()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := now.Add(-time.Second)
	rec := &Record{UserID: "u1", Warnings: 3, MuteUntil: &until, Version: 3}

	assert.Equal(StateWarned, rec.State(now))
	assert.Equal(StateMuted, rec.State(until.Add(-time.Hour)))

	next, dec := p.Apply(rec, assessment(threat.Safe), now)
	assert.Equal(ActionAllow, dec.Action)
	assert.True(dec.Changed)
	assert.Nil(next.MuteUntil)
	assert.Equal(3, next.Warnings)
	// input untouched
	assert.NotNil(rec.MuteUntil)

	// mute threshold already passed, so the next offense mutes again
	next, dec = p.Apply(rec, assessment(threat.Danger), now)
	assert.Equal(ActionRemoveAndMute, dec.Action)
	assert.Equal(4, next.Warnings)
	assert.True(next.Muted(now))
}

func TestPolicyDangerWhileMuted(t *testing.T) {
	assert := assert.New(t)
	p := DefaultPolicy()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := now.Add(24 * time.Hour)
	rec := &Record{UserID: "u1", Warnings: 3, MuteUntil: &until, Version: 3}

	next, dec := p.Apply(rec, assessment(threat.Danger), now)
	assert.Equal(ActionRemoveAndWarn, dec.Action)
	assert.Equal(4, next.Warnings)
	assert.Equal(until, *next.MuteUntil)
}

func TestPolicyValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(DefaultPolicy().Validate())
	assert.Error(Policy{MuteThreshold: 0, BanThreshold: 5, MuteDuration: time.Hour}.Validate())
	assert.Error(Policy{MuteThreshold: 3, BanThreshold: 5}.Validate())
}

func TestActionSeverity(t *testing.T) {
	assert := assert.New(t)

	assert.True(ActionRemoveAndBan.MoreSevere(ActionRemoveAndMute))
	assert.True(ActionPublicWarning.MoreSevere(ActionAllow))
	assert.False(ActionAllow.MoreSevere(ActionAllow))
	assert.True(ActionRemoveAndWarn.RemovesMessage())
	assert.False(ActionPublicWarning.RemovesMessage())

	assert.Equal(ActionPublicWarning, FallbackAction(threat.Danger))
	assert.Equal(ActionPublicWarning, FallbackAction(threat.Suspicious))
	assert.Equal(ActionAllow, FallbackAction(threat.Caution))
}
