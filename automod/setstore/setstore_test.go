package setstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStoreDomains(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	assert.NoError(ss.SetValues(SetTrustedDomains, []string{"google.com", "Wikipedia.org", "*.example.net"}))

	for _, host := range []string{"google.com", "mail.google.com", "en.wikipedia.org", "a.example.net", "a.b.example.net"} {
		ok, err := ss.MatchDomain(ctx, SetTrustedDomains, host)
		assert.NoError(err)
		assert.True(ok, host)
	}
	for _, host := range []string{"notgoogle.com", "google.com.evil.tk", "example.net", "example.net.evil.tk"} {
		ok, err := ss.MatchDomain(ctx, SetTrustedDomains, host)
		assert.NoError(err)
		assert.False(ok, host)
	}

	ok, err := ss.InSet(ctx, SetTrustedDomains, "GOOGLE.com")
	assert.NoError(err)
	assert.True(ok)

	// missing set is empty
	ok, err = ss.MatchDomain(ctx, SetBlacklistDomains, "google.com")
	assert.NoError(err)
	assert.False(ok)

	members, err := ss.SetMembers(ctx, SetTrustedDomains)
	assert.NoError(err)
	assert.Equal([]string{"google.com", "wikipedia.org"}, members)

}

func TestMemSetStoreLoadFile(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	assert.NoError(ss.LoadFromFile("testdata/sets.json"))
	assert.NoError(ss.LoadFromFile("testdata/sets.yaml"))

	ok, err := ss.MatchDomain(ctx, SetTrustedDomains, "www.github.com")
	assert.NoError(err)
	assert.True(ok)

	ok, err = ss.MatchDomain(ctx, SetTrustedDomains, "hmrc.gov.uk")
	assert.NoError(err)
	assert.True(ok)

	// patterns also match through parent domains
	ok, err = ss.MatchDomain(ctx, SetTrustedDomains, "www.hmrc.gov.uk")
	assert.NoError(err)
	assert.True(ok)

	ok, err = ss.MatchDomain(ctx, SetTrustedDomains, "gov.uk")
	assert.NoError(err)
	assert.False(ok)

	ok, err = ss.InSet(ctx, SetSuspiciousTLDs, "tk")
	assert.NoError(err)
	assert.True(ok)

	ok, err = ss.InSet(ctx, SetShorteners, "bit.ly")
	assert.NoError(err)
	assert.True(ok)

	brands, err := ss.SetMembers(ctx, SetProtectedBrands)
	assert.NoError(err)
	assert.Equal([]string{"google.com", "paypal.com"}, brands)

	assert.Error(ss.LoadFromFile("testdata/missing.json"))
}
