package signals

import (
	"context"
	"fmt"
	"net/http"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/reasoning"
)

var verdictScores = map[reasoning.Category]float64{
	reasoning.CategoryPhishing:   0.95,
	reasoning.CategoryMalware:    0.95,
	reasoning.CategoryScam:       0.9,
	reasoning.CategorySuspicious: 0.6,
	reasoning.CategoryBenign:     0.05,
}

// Fetches a page excerpt and asks an AI reasoning service for a verdict on it.
type AIContentChecker struct {
	Analyzer reasoning.Analyzer
	// used to fetch the page; if nil, no excerpt is sent
	Client *http.Client
}

var _ Checker = (*AIContentChecker)(nil)

func (c *AIContentChecker) Kind() Kind {
	return KindAIContent
}

func (c *AIContentChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	req := reasoning.Request{URL: le.URL}
	if c.Client != nil {
		// a page which can't be fetched is still judged by URL alone
		ex, err := reasoning.FetchExcerpt(ctx, c.Client, le.URL)
		if ctx.Err() != nil {
			return Unavailable(KindAIContent, ctx.Err())
		}
		if err == nil {
			req.Excerpt = ex
		}
	}

	v, err := c.Analyzer.Analyze(ctx, req)
	if err != nil {
		return Unavailable(KindAIContent, fmt.Errorf("AI provider: %w", err))
	}
	score, ok := verdictScores[v.Category]
	if !ok {
		return Unavailable(KindAIContent, fmt.Errorf("%w: category %q", reasoning.ErrMalformedResponse, v.Category))
	}
	flags := append([]string{"ai:" + string(v.Category)}, v.Indicators...)
	return Scored(KindAIContent, score, v.Rationale, flags...)
}
