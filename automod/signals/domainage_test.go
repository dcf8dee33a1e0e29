package signals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainAgeChecker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		switch r.URL.Path {
		case "/domain/old-site.com":
			w.Write([]byte(`{"ldhName": "OLD-SITE.COM", "events": [{"eventAction": "last changed", "eventDate": "2024-01-01T00:00:00Z"}, {"eventAction": "registration", "eventDate": "1997-09-15T04:00:00Z"}]}`))
		case "/domain/brand-new.com":
			w.Write([]byte(`{"events": [{"eventAction": "registration", "eventDate": "2025-05-29T10:00:00Z"}]}`))
		case "/domain/fortnight.com":
			w.Write([]byte(`{"events": [{"eventAction": "registration", "eventDate": "2025-05-17"}]}`))
		case "/domain/no-events.com":
			w.Write([]byte(`{"events": []}`))
		case "/domain/bad-date.com":
			w.Write([]byte(`{"events": [{"eventAction": "registration", "eventDate": "2025-13-45"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dc := &DomainAgeChecker{
		Client: srv.Client(),
		Host:   srv.URL,
		Now:    func() time.Time { return now },
	}

	res := dc.Check(ctx, linkEvent("https://www.old-site.com/about"))
	assert.True(res.Usable())
	assert.Equal(0.0, res.Score)

	young := dc.Check(ctx, linkEvent("https://brand-new.com"))
	assert.True(young.Usable())
	assert.Greater(young.Score, 0.85)
	assert.Contains(young.Flags, "new-domain")

	mid := dc.Check(ctx, linkEvent("https://fortnight.com"))
	assert.True(mid.Usable())
	assert.InDelta(1.0-15.0/30.0, mid.Score, 0.01)

	// younger domains score higher
	assert.Greater(young.Score, mid.Score)

	for _, u := range []string{"https://no-events.com", "https://bad-date.com", "https://unknown.com"} {
		res := dc.Check(ctx, linkEvent(u))
		assert.False(res.Usable(), u)
		assert.NotEmpty(res.Error, u)
	}

	res = dc.Check(ctx, linkEvent("http://192.168.0.1/"))
	assert.False(res.Available)
	assert.Empty(res.Error)
}
