package signals

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/carlmjohnson/versioninfo"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/helpers"
	"github.com/linkguard/linkguard/automod/setstore"
)

const (
	DefaultMaxRedirects = 5
	ScoreRedirectLoop   = 0.9
	ScoreShortenerFloor = 0.2
)

// A checker which can rate an arbitrary hostname, not just the host of the link being checked
type HostChecker interface {
	Kind() Kind
	CheckHost(ctx context.Context, host string) Result
}

// Resolves URL-shortener links by following redirects one hop at a time, then re-checks the final destination's host.
type ShortenerChecker struct {
	Sets   setstore.SetStore
	Client *http.Client
	// defaults to DefaultMaxRedirects
	MaxRedirects int
	// run against the resolved host; typically reputation, domain age, and TLS
	HostCheckers []HostChecker
}

var _ Checker = (*ShortenerChecker)(nil)

func (c *ShortenerChecker) Kind() Kind {
	return KindShortener
}

func (c *ShortenerChecker) client() *http.Client {
	base := c.Client
	if base == nil {
		base = http.DefaultClient
	}
	// shallow copy, so redirects are handled here rather than by the client
	cl := *base
	cl.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cl
}

func (c *ShortenerChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	isShortener, err := c.Sets.MatchDomain(ctx, setstore.SetShorteners, le.Domain)
	if err != nil {
		return Unavailable(KindShortener, err)
	}
	if !isShortener {
		return NotApplicable(KindShortener, "not a known URL shortener")
	}

	final, hops, loopErr, err := c.Resolve(ctx, le.URL)
	if err != nil {
		return Unavailable(KindShortener, err)
	}
	if loopErr != "" {
		return Scored(KindShortener, ScoreRedirectLoop, loopErr, "redirect-loop")
	}

	host := helpers.LinkHost(final)
	sub := c.checkHost(ctx, host)
	score := ScoreShortenerFloor
	for _, r := range sub {
		if r.Usable() && r.Score > score {
			score = r.Score
		}
	}
	flags := []string{"resolved:" + host}
	listed := false
	for _, r := range sub {
		if r.Usable() && r.Score > ScoreShortenerFloor {
			flags = append(flags, string(r.Kind)+":"+r.Detail)
		}
		if r.Usable() && r.Listed {
			listed = true
		}
	}
	res := Scored(KindShortener, score, fmt.Sprintf("resolves to %s after %d redirects", final, hops), flags...)
	// a short link to a blocklisted domain counts as a hit itself
	res.Listed = listed
	return res
}

func (c *ShortenerChecker) checkHost(ctx context.Context, host string) []Result {
	out := make([]Result, len(c.HostCheckers))
	var wg sync.WaitGroup
	for i, hc := range c.HostCheckers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					out[i] = Unavailable(hc.Kind(), fmt.Errorf("checker panic: %v", r))
				}
			}()
			out[i] = hc.CheckHost(ctx, host)
		}()
	}
	wg.Wait()
	return out
}

// Follows redirects from link. Returns the final (normalized) URL and the number of redirects followed. If a redirect loop or too many redirects were encountered, loopErr describes it (and err is nil).
func (c *ShortenerChecker) Resolve(ctx context.Context, link string) (final string, hops int, loopErr string, err error) {
	max := c.MaxRedirects
	if max <= 0 {
		max = DefaultMaxRedirects
	}
	client := c.client()
	visited := map[string]bool{link: true}
	current := link
	for {
		next, err := c.nextHop(ctx, client, current)
		if err != nil {
			return "", hops, "", err
		}
		if next == "" {
			return current, hops, "", nil
		}
		hops++
		if visited[next] {
			return "", hops, "circular redirect to " + next, nil
		}
		if hops > max {
			return "", hops, fmt.Sprintf("more than %d redirects", max), nil
		}
		visited[next] = true
		current = next
	}
}

// Returns the normalized redirect target, or empty string if the response was not a redirect
func (c *ShortenerChecker) nextHop(ctx context.Context, client *http.Client, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "linkguard/"+versioninfo.Short())
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolving redirect: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", nil
	}
	base, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	target, err := base.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", loc, err)
	}
	next, err := helpers.NormalizeURL(target.String())
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", loc, err)
	}
	return next, nil
}
