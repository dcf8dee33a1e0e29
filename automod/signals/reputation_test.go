package signals

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkguard/linkguard/automod/flagstore"
	"github.com/linkguard/linkguard/automod/setstore"
)

func testSets(t *testing.T) *setstore.MemSetStore {
	ss := setstore.NewMemSetStore()
	require.NoError(t, ss.SetValues(setstore.SetTrustedDomains, []string{"google.com", "github.com", "*.gov.uk"}))
	require.NoError(t, ss.SetValues(setstore.SetBlacklistDomains, []string{"evil-site.com"}))
	require.NoError(t, ss.SetValues(setstore.SetSuspiciousTLDs, []string{".tk", "ml"}))
	require.NoError(t, ss.SetValues(setstore.SetShorteners, []string{"bit.ly", "127.0.0.1"}))
	require.NoError(t, ss.SetValues(setstore.SetProtectedBrands, []string{"paypal.com", "google.com", "discord.com"}))
	return ss
}

func TestReputationChecker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	flags := flagstore.NewMemFlagStore()
	assert.NoError(flags.Add(ctx, "learned-bad.net", []string{flagstore.FlagBlacklisted}))

	rc := &ReputationChecker{
		Sets:  testSets(t),
		Flags: flags,
	}

	fixtures := []struct {
		url     string
		score   float64
		trusted bool
		listed  bool
	}{
		{url: "https://google.com", score: 0.0, trusted: true},
		{url: "https://mail.google.com/inbox", score: 0.0, trusted: true},
		{url: "https://www.hmrc.gov.uk", score: 0.0, trusted: true},
		{url: "https://evil-site.com/x", score: ScoreBlacklisted, listed: true},
		{url: "https://login.evil-site.com/x", score: ScoreBlacklisted, listed: true},
		{url: "https://cdn.learned-bad.net/x", score: ScoreBlacklisted, listed: true},
		{url: "http://10.1.2.3/login", score: ScoreRawIP},
		{url: "https://free-money.tk", score: ScoreSuspiciousTLD},
		{url: "https://free-money.ml", score: ScoreSuspiciousTLD},
		{url: "https://google.com.free-money.tk", score: ScoreSuspiciousTLD},
		{url: "https://example.org", score: ScoreUnknownDomain},
	}
	for _, fix := range fixtures {
		res := rc.Check(ctx, linkEvent(fix.url))
		assert.True(res.Usable(), fix.url)
		assert.Equal(fix.score, res.Score, fix.url)
		assert.Equal(fix.trusted, res.Trusted, fix.url)
		assert.Equal(fix.listed, res.Listed, fix.url)
	}
}

// runs a DNS server which lists any name containing "listed" (and 127.0.0.2 reversed)
func startDNSBLServer(t *testing.T) string {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			q := req.Question[0]
			name := strings.ToLower(q.Name)
			if strings.Contains(name, "listed") || strings.HasPrefix(name, "2.0.0.127.") {
				rr, _ := dns.NewRR(q.Name + " 60 IN A 127.0.1.2")
				m.Answer = append(m.Answer, rr)
			} else if strings.Contains(name, "ratelimited") {
				rr, _ := dns.NewRR(q.Name + " 60 IN A 127.255.255.254")
				m.Answer = append(m.Answer, rr)
			} else {
				m.Rcode = dns.RcodeNameError
			}
			w.WriteMsg(m)
		}),
	}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSBLLookup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	addr := startDNSBLServer(t)
	c, err := NewDNSBLClient([]string{"dbl.test"}, addr)
	require.NoError(t, err)

	zone, err := c.Lookup(ctx, "listed.example")
	assert.NoError(err)
	assert.Equal("dbl.test", zone)

	zone, err = c.Lookup(ctx, "clean.example")
	assert.NoError(err)
	assert.Empty(zone)

	zone, err = c.Lookup(ctx, "ratelimited.example")
	assert.NoError(err)
	assert.Empty(zone)

	zone, err = c.Lookup(ctx, "127.0.0.2")
	assert.NoError(err)
	assert.Equal("dbl.test", zone)

	assert.Equal("2.0.0.127.zen.test.", dnsblQueryName("127.0.0.2", "zen.test"))
	assert.Equal("example.com.dbl.test.", dnsblQueryName("example.com", "dbl.test"))
	assert.Empty(dnsblQueryName("::1", "dbl.test"))

	rc := &ReputationChecker{Sets: testSets(t), DNSBL: c}
	res := rc.Check(ctx, linkEvent("https://www.listed-site.com/x"))
	assert.Equal(ScoreBlacklisted, res.Score)
	assert.True(res.Listed)
	assert.Contains(res.Flags, "dnsbl")

	// trusted overrides any blocklist
	res = rc.Check(ctx, linkEvent("https://github.com"))
	assert.True(res.Trusted)
}

func TestDNSBLAllZonesFail(t *testing.T) {
	assert := assert.New(t)

	// nothing listening on this port
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	pc.Close()

	c, err := NewDNSBLClient([]string{"dbl.test"}, addr)
	require.NoError(t, err)
	c.Client.Timeout = 200 * time.Millisecond
	_, err = c.Lookup(context.Background(), "example.com")
	assert.Error(err)

	// reputation still scores without the blocklist
	rc := &ReputationChecker{Sets: testSets(t), DNSBL: c}
	res := rc.Check(context.Background(), linkEvent("https://example.com"))
	assert.Equal(ScoreUnknownDomain, res.Score)
}
