package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carlmjohnson/versioninfo"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/helpers"
)

const (
	DefaultRDAPHost        = "https://rdap.org"
	DefaultDomainAgeWindow = 30 * 24 * time.Hour
)

// Rates newly-registered domains, based on the registration date from RDAP.
//
// Score falls linearly from 1.0 (registered just now) to 0.0 (registered Window ago or earlier).
type DomainAgeChecker struct {
	Client *http.Client
	// RDAP server (or bootstrap redirector) base URL
	Host   string
	Window time.Duration
	Now    func() time.Time
}

var _ Checker = (*DomainAgeChecker)(nil)

// subset of RFC 9083 domain object
type rdapDomain struct {
	LDHName string      `json:"ldhName"`
	Events  []rdapEvent `json:"events"`
}

type rdapEvent struct {
	Action string `json:"eventAction"`
	Date   string `json:"eventDate"`
}

func (c *DomainAgeChecker) Kind() Kind {
	return KindDomainAge
}

func (c *DomainAgeChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	return c.CheckHost(ctx, le.Domain)
}

func (c *DomainAgeChecker) CheckHost(ctx context.Context, host string) Result {
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return NotApplicable(KindDomainAge, "IP address has no registration")
	}
	domain := helpers.RegistrableDomain(host)
	registered, err := c.RegistrationDate(ctx, domain)
	if err != nil {
		return Unavailable(KindDomainAge, err)
	}

	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	window := c.Window
	if window <= 0 {
		window = DefaultDomainAgeWindow
	}
	age := now.Sub(registered)
	score := 1.0 - float64(age)/float64(window)
	detail := fmt.Sprintf("registered %s (%d days ago)", registered.Format(time.DateOnly), int(age.Hours()/24))
	if age < window {
		return Scored(KindDomainAge, score, detail, "new-domain")
	}
	return Scored(KindDomainAge, score, detail)
}

// Looks up the registration event date for a registrable domain
func (c *DomainAgeChecker) RegistrationDate(ctx context.Context, domain string) (time.Time, error) {
	host := c.Host
	if host == "" {
		host = DefaultRDAPHost
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, "GET", strings.TrimSuffix(host, "/")+"/domain/"+domain, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")
	req.Header.Set("User-Agent", "linkguard/"+versioninfo.Short())

	resp, err := client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("rdap request: %w", err)
	}
	defer resp.Body.Close()
	rdapLookups.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("rdap request failed statusCode=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return time.Time{}, fmt.Errorf("reading rdap response: %w", err)
	}
	var obj rdapDomain
	if err := json.Unmarshal(body, &obj); err != nil {
		return time.Time{}, fmt.Errorf("parsing rdap response: %w", err)
	}
	for _, ev := range obj.Events {
		if ev.Action != "registration" {
			continue
		}
		t, err := dateparse.ParseAny(ev.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing registration date %q: %w", ev.Date, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("no registration event for %s", domain)
}
