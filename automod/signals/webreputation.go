package signals

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/helpers"
	"github.com/linkguard/linkguard/automod/keyword"
	"github.com/linkguard/linkguard/automod/websearch"
)

const (
	ScoreNoWebPresence     = 0.3
	ScoreNoNegativeResults = 0.05
	ScoreNegativeBase      = 0.2
	ScoreNegativeRange     = 0.8
)

// Searches the web for complaints about a domain.
type WebReputationChecker struct {
	Searcher websearch.Searcher
	// defaults to keyword.NegativeIndicators
	Indicators []string
}

var _ Checker = (*WebReputationChecker)(nil)

func (c *WebReputationChecker) Kind() Kind {
	return KindWebReputation
}

func (c *WebReputationChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	if net.ParseIP(strings.Trim(le.Domain, "[]")) != nil {
		return NotApplicable(KindWebReputation, "IP address")
	}
	domain := helpers.RegistrableDomain(le.Domain)
	query := fmt.Sprintf(`"%s" scam OR fraud OR phishing OR complaint`, domain)
	results, err := c.Searcher.Search(ctx, query)
	if err != nil {
		return Unavailable(KindWebReputation, err)
	}
	return ScoreSnippets(domain, results, c.indicators())
}

func (c *WebReputationChecker) indicators() []string {
	if len(c.Indicators) > 0 {
		return c.Indicators
	}
	return keyword.NegativeIndicators
}

// Scores search results by the share which mention the domain alongside a negative indicator
func ScoreSnippets(domain string, results []websearch.Snippet, indicators []string) Result {
	if len(results) == 0 {
		return Scored(KindWebReputation, ScoreNoWebPresence, "no web presence", "no-web-presence")
	}
	negative := 0
	var words []string
	for _, r := range results {
		text := r.Title + " " + r.Snippet
		if !keyword.MentionsDomain(text+" "+r.Link, domain) {
			continue
		}
		if w := keyword.FirstTokenInSet(text, indicators); w != "" {
			negative++
			words = append(words, w)
		}
	}
	if negative == 0 {
		return Scored(KindWebReputation, ScoreNoNegativeResults, fmt.Sprintf("%d search results, none negative", len(results)))
	}
	share := float64(negative) / float64(len(results))
	words = helpers.DedupeStrings(words)
	return Scored(
		KindWebReputation,
		ScoreNegativeBase+ScoreNegativeRange*share,
		fmt.Sprintf("%d of %d search results are negative (%s)", negative, len(results), strings.Join(words, ", ")),
		"negative-reviews",
	)
}
