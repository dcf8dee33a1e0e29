package signals

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Queries DNS-based blocklists (eg, "dbl.spamhaus.org", "multi.surbl.org") for domains and IP addresses.
//
// A name is listed if the zone returns any A record within 127.0.0.0/8, except for 127.255.255.0/24, which blocklist operators use for error codes (eg, rate-limiting).
type DNSBLClient struct {
	Zones []string
	// "host:port" of the resolver to query. Defaults to the first server in /etc/resolv.conf
	Nameserver string
	Client     *dns.Client
}

func NewDNSBLClient(zones []string, nameserver string) (*DNSBLClient, error) {
	if nameserver == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("loading resolver config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers configured")
		}
		nameserver = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return &DNSBLClient{
		Zones:      zones,
		Nameserver: nameserver,
		Client: &dns.Client{
			Net:     "udp",
			Timeout: 2 * time.Second,
		},
	}, nil
}

// Builds the query name for a host in a zone. IPv4 addresses are reversed octet-wise; IPv6 is not supported by most domain blocklists and returns empty string.
func dnsblQueryName(host, zone string) string {
	if ip := net.ParseIP(host); ip != nil {
		v4 := ip.To4()
		if v4 == nil {
			return ""
		}
		return dns.Fqdn(fmt.Sprintf("%d.%d.%d.%d.%s", v4[3], v4[2], v4[1], v4[0], zone))
	}
	return dns.Fqdn(strings.TrimSuffix(host, ".") + "." + zone)
}

func isListingAddr(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil || v4[0] != 127 {
		return false
	}
	return !(v4[1] == 255 && v4[2] == 255)
}

// Returns the first zone which lists host, or empty string. An error is only returned if every zone query failed.
func (c *DNSBLClient) Lookup(ctx context.Context, host string) (string, error) {
	var lastErr error
	failures := 0
	for _, zone := range c.Zones {
		qname := dnsblQueryName(host, zone)
		if qname == "" {
			continue
		}
		msg := new(dns.Msg)
		msg.SetQuestion(qname, dns.TypeA)
		resp, _, err := c.Client.ExchangeContext(ctx, msg, c.Nameserver)
		if err != nil {
			dnsblQueries.WithLabelValues(zone, "error").Inc()
			lastErr = err
			failures++
			continue
		}
		listed := false
		for _, ans := range resp.Answer {
			if a, ok := ans.(*dns.A); ok && isListingAddr(a.A) {
				listed = true
				break
			}
		}
		if listed {
			dnsblQueries.WithLabelValues(zone, "listed").Inc()
			return zone, nil
		}
		dnsblQueries.WithLabelValues(zone, "clear").Inc()
	}
	if failures > 0 && failures == len(c.Zones) {
		return "", fmt.Errorf("dnsbl lookup: %w", lastErr)
	}
	return "", nil
}
