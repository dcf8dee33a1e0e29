package helpers

import (
	"errors"
	"iter"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var ErrNotLink = errors.New("not a web link")

var trackingParams = []string{
	"__s",
	"_ga",
	"campaign_id",
	"ceid",
	"emci",
	"emdi",
	"fbclid",
	"gclid",
	"hootPostID",
	"igshid",
	"mc_cid",
	"mc_eid",
	"mkclid",
	"mkt_tok",
	"msclkid",
	"pk_campaign",
	"pk_kwd",
	"sessionid",
	"si",
	"sourceid",
	"utm_campaign",
	"utm_content",
	"utm_id",
	"utm_medium",
	"utm_source",
	"utm_term",
	"xpid",
	"yclid",
}

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveFragment | purell.FlagRemoveDotSegments | purell.FlagRemoveDuplicateSlashes | purell.FlagSortQuery

// Normalizes a web link for analysis and caching: adds a missing https scheme, lower-cases the host (punycode-encoding any unicode), drops fragments and tracking query params.
//
// Returns ErrNotLink for anything which doesn't look like an http(s) link to a plausible public host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNotLink
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrNotLink
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrNotLink
	}
	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	clean := purell.NormalizeURL(u, normalizeFlags)
	out, err := url.Parse(clean)
	if err != nil {
		return clean, nil
	}
	if out.RawQuery == "" {
		return clean, nil
	}
	params := out.Query()
	for _, p := range trackingParams {
		params.Del(p)
	}
	out.RawQuery = params.Encode()
	return out.String(), nil
}

// Lower-cases and punycode-encodes a hostname, and checks that it is either an IP address or has a known public suffix.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return "", ErrNotLink
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host, nil
	}
	ascii, err := idna.Punycode.ToASCII(host)
	if err != nil {
		return "", ErrNotLink
	}
	if !strings.Contains(ascii, ".") {
		return "", ErrNotLink
	}
	suffix, icann := publicsuffix.PublicSuffix(ascii)
	if !icann && !strings.Contains(suffix, ".") {
		// unknown TLD, probably a file name or version number
		return "", ErrNotLink
	}
	if suffix == ascii {
		return "", ErrNotLink
	}
	return ascii, nil
}

// Returns the hostname (no port) of an already-normalized URL, or empty string.
func LinkHost(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Returns the "effective TLD plus one" for a host (eg, "example.co.uk" for "www.example.co.uk"). Falls back to the host itself (eg, for IP addresses).
func RegistrableDomain(host string) string {
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// Returns true if host is domain, or a subdomain of domain.
func IsSubdomainOf(host, domain string) bool {
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed. ports, fragments and a few extra path characters are allowed in the middle of a match, and unicode letters count as word characters
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\pL\pN_/\-?=%.]+\.[\pL\pN_/\-&?=%.:~+#]*[\pL\pN_/\-&?=%~+#]+`)

// Lazily scans free-form message text for web links, yielding each normalized link once. Malformed candidates are skipped; this never fails.
func ExtractLinks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]bool)
		rest := text
		for len(rest) > 0 {
			loc := urlRegex.FindStringIndex(rest)
			if loc == nil {
				return
			}
			cand := rest[loc[0]:loc[1]]
			rest = rest[loc[1]:]
			link, err := NormalizeURL(cand)
			if err != nil || seen[link] {
				continue
			}
			seen[link] = true
			if !yield(link) {
				return
			}
		}
	}
}
