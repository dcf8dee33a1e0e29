package reasoning

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Client for the Anthropic "messages" API
type AnthropicClient struct {
	Client    *http.Client
	Host      string
	APIKey    string
	Model     string
	MaxTokens int
	Limiter   *rate.Limiter
}

var _ Analyzer = (*AnthropicClient)(nil)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func NewAnthropicClient(client *http.Client, apiKey, model string) *AnthropicClient {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicClient{
		Client:    client,
		Host:      "https://api.anthropic.com",
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: 1000,
	}
}

func (c *AnthropicClient) Analyze(ctx context.Context, req Request) (*Verdict, error) {
	body := anthropicRequest{
		Model:     c.Model,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: buildPrompt(req)}},
		MaxTokens: c.MaxTokens,
	}
	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}
	var resp anthropicResponse
	if err := postJSON(ctx, "anthropic", c.Client, c.Limiter, strings.TrimSuffix(c.Host, "/")+"/v1/messages", headers, body, &resp); err != nil {
		return nil, err
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return finishVerdict("anthropic", block.Text)
		}
	}
	return nil, fmt.Errorf("%w: no text content in response", ErrMalformedResponse)
}
