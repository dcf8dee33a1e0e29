package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	querystring "github.com/google/go-querystring/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("web search rate limited")

type Snippet struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

var searchAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "linkguard_websearch_duration_sec",
	Help: "Duration of web search API calls",
})

var searchAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkguard_websearch_requests",
	Help: "Number of web search API calls, by HTTP status code",
}, []string{"status"})

// Client for the SerpAPI Google search API
type SerpAPIClient struct {
	Client     *http.Client
	Host       string
	APIKey     string
	NumResults int
	Limiter    *rate.Limiter
}

var _ Searcher = (*SerpAPIClient)(nil)

type serpAPIParams struct {
	Engine string `url:"engine"`
	Query  string `url:"q"`
	APIKey string `url:"api_key"`
	Num    int    `url:"num,omitempty"`
}

// schema: https://serpapi.com/search-api
type serpAPIResponse struct {
	Error          string    `json:"error"`
	OrganicResults []Snippet `json:"organic_results"`
}

func NewSerpAPIClient(client *http.Client, apiKey string) *SerpAPIClient {
	return &SerpAPIClient{
		Client:     client,
		Host:       "https://serpapi.com",
		APIKey:     apiKey,
		NumResults: 10,
	}
}

func (c *SerpAPIClient) Search(ctx context.Context, query string) ([]Snippet, error) {
	if c.Limiter != nil && !c.Limiter.Allow() {
		searchAPICount.WithLabelValues("limited").Inc()
		return nil, ErrRateLimited
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	params, err := querystring.Values(serpAPIParams{
		Engine: "google",
		Query:  query,
		APIKey: c.APIKey,
		Num:    c.NumResults,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", strings.TrimSuffix(c.Host, "/")+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "linkguard/"+versioninfo.Short())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()
	searchAPIDuration.Observe(time.Since(start).Seconds())
	searchAPICount.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search request failed statusCode=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read web search response body: %w", err)
	}
	var out serpAPIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse web search response: %w", err)
	}
	// SerpAPI reports "no results" as an error string
	if out.Error != "" && len(out.OrganicResults) == 0 && !strings.Contains(strings.ToLower(out.Error), "hasn't returned any results") {
		return nil, fmt.Errorf("web search failed: %s", out.Error)
	}
	if out.OrganicResults == nil {
		return []Snippet{}, nil
	}
	return out.OrganicResults, nil
}
