package signals

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/flagstore"
	"github.com/linkguard/linkguard/automod/helpers"
	"github.com/linkguard/linkguard/automod/setstore"
)

const (
	ScoreBlacklisted   = 1.0
	ScoreRawIP         = 0.7
	ScoreSuspiciousTLD = 0.6
	ScoreUnknownDomain = 0.1
)

// Rates a link's host against configured allow and deny lists, learned flags, and DNS blocklists.
type ReputationChecker struct {
	Sets setstore.SetStore
	// optional
	Flags flagstore.FlagStore
	// optional
	DNSBL  *DNSBLClient
	Logger *slog.Logger
}

var _ Checker = (*ReputationChecker)(nil)

func (c *ReputationChecker) Kind() Kind {
	return KindReputation
}

func (c *ReputationChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	return c.CheckHost(ctx, le.Domain)
}

// Exposed separately so the shortener resolver can re-check redirect targets
func (c *ReputationChecker) CheckHost(ctx context.Context, host string) Result {
	host = strings.ToLower(host)

	trusted, err := c.Sets.MatchDomain(ctx, setstore.SetTrustedDomains, host)
	if err != nil {
		return Unavailable(KindReputation, err)
	}
	if trusted {
		r := Scored(KindReputation, 0.0, "trusted domain")
		r.Trusted = true
		return r
	}

	blacklisted, err := c.Sets.MatchDomain(ctx, setstore.SetBlacklistDomains, host)
	if err != nil {
		return Unavailable(KindReputation, err)
	}
	if blacklisted {
		return Listed(KindReputation, "domain is blacklisted", "blacklisted")
	}

	isIP := net.ParseIP(strings.Trim(host, "[]")) != nil
	regDomain := helpers.RegistrableDomain(host)

	if c.Flags != nil && !isIP {
		flagged, err := flagstore.HasFlag(ctx, c.Flags, regDomain, flagstore.FlagBlacklisted)
		if err != nil {
			return Unavailable(KindReputation, fmt.Errorf("reading domain flags: %w", err))
		}
		if flagged {
			return Listed(KindReputation, "domain previously rated dangerous", "learned-blacklist")
		}
	}

	if c.DNSBL != nil {
		target := regDomain
		if isIP {
			target = strings.Trim(host, "[]")
		}
		zone, err := c.DNSBL.Lookup(ctx, target)
		if err != nil {
			// other signals still apply
			c.logger().Warn("dns blocklist lookup failed", "host", host, "err", err)
		} else if zone != "" {
			return Listed(KindReputation, "listed in DNS blocklist "+zone, "dnsbl")
		}
	}

	if isIP {
		return Scored(KindReputation, ScoreRawIP, "link uses a raw IP address", "raw-ip")
	}

	tld := host
	if i := strings.LastIndex(host, "."); i >= 0 {
		tld = host[i+1:]
	}
	suspicious, err := c.Sets.InSet(ctx, setstore.SetSuspiciousTLDs, tld)
	if err != nil {
		return Unavailable(KindReputation, err)
	}
	if !suspicious {
		// lists may include the leading dot
		suspicious, err = c.Sets.InSet(ctx, setstore.SetSuspiciousTLDs, "."+tld)
		if err != nil {
			return Unavailable(KindReputation, err)
		}
	}
	if suspicious {
		return Scored(KindReputation, ScoreSuspiciousTLD, "suspicious top-level domain ."+tld, "suspicious-tld")
	}

	return Scored(KindReputation, ScoreUnknownDomain, "no reputation information")
}

func (c *ReputationChecker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
