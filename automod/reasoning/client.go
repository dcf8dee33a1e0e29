package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

// Sends a JSON request to a provider API and decodes the JSON response in to out.
//
// The limiter (if any) is checked without waiting: callers run under short deadlines, and an exhausted budget is reported as ErrRateLimited.
func postJSON(ctx context.Context, provider string, client *http.Client, limiter *rate.Limiter, url string, headers map[string]string, body, out any) error {
	if limiter != nil && !limiter.Allow() {
		providerAPICount.WithLabelValues(provider, "limited").Inc()
		return ErrRateLimited
	}
	if client == nil {
		client = http.DefaultClient
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "linkguard/"+versioninfo.Short())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s API request failed: %w", provider, err)
	}
	defer resp.Body.Close()
	providerAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	providerAPICount.WithLabelValues(provider, fmt.Sprint(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s API request failed statusCode=%d", provider, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s API response body: %w", provider, err)
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// Helper to configure a provider's request budget
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func finishVerdict(provider, text string) (*Verdict, error) {
	v, err := ParseVerdict(text)
	if err != nil {
		verdictCount.WithLabelValues(provider, "malformed").Inc()
		return nil, err
	}
	verdictCount.WithLabelValues(provider, string(v.Category)).Inc()
	return v, nil
}
