package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestSerpAPIClient(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/search", r.URL.Path)
		assert.Equal("key", r.URL.Query().Get("api_key"))
		switch r.URL.Query().Get("q") {
		case "found":
			w.Write([]byte(`{"organic_results": [{"title": "Example", "link": "https://example.com", "snippet": "the example site"}]}`))
		case "empty":
			w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
		case "busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"error": "Invalid API key."}`))
		}
	}))
	defer srv.Close()

	c := NewSerpAPIClient(srv.Client(), "key")
	c.Host = srv.URL

	res, err := c.Search(ctx, "found")
	assert.NoError(err)
	assert.Equal([]Snippet{{Title: "Example", Link: "https://example.com", Snippet: "the example site"}}, res)

	res, err = c.Search(ctx, "empty")
	assert.NoError(err)
	assert.Empty(res)

	_, err = c.Search(ctx, "busy")
	assert.ErrorIs(err, ErrRateLimited)

	_, err = c.Search(ctx, "other")
	assert.Error(err)

	c.Limiter = rate.NewLimiter(rate.Limit(0.001), 1)
	_, err = c.Search(ctx, "found")
	assert.NoError(err)
	_, err = c.Search(ctx, "found")
	assert.ErrorIs(err, ErrRateLimited)
}
