package reasoning

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Client for OpenAI-compatible "chat completions" APIs
type OpenAIClient struct {
	Client  *http.Client
	Host    string
	APIKey  string
	Model   string
	Limiter *rate.Limiter
}

var _ Analyzer = (*OpenAIClient)(nil)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func NewOpenAIClient(client *http.Client, apiKey, model string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		Client: client,
		Host:   "https://api.openai.com",
		APIKey: apiKey,
		Model:  model,
	}
}

func (c *OpenAIClient) Analyze(ctx context.Context, req Request) (*Verdict, error) {
	body := openAIRequest{
		Model: c.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
	}
	var resp openAIResponse
	if err := postJSON(ctx, "openai", c.Client, c.Limiter, strings.TrimSuffix(c.Host, "/")+"/v1/chat/completions", headers, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion", ErrMalformedResponse)
	}
	return finishVerdict("openai", resp.Choices[0].Message.Content)
}
