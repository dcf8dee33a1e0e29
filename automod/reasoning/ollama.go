package reasoning

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Client for a local Ollama server's "generate" API
type OllamaClient struct {
	Client  *http.Client
	Host    string
	Model   string
	Limiter *rate.Limiter
}

var _ Analyzer = (*OllamaClient)(nil)

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func NewOllamaClient(client *http.Client, host, model string) *OllamaClient {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaClient{
		Client: client,
		Host:   host,
		Model:  model,
	}
}

func (c *OllamaClient) Analyze(ctx context.Context, req Request) (*Verdict, error) {
	body := ollamaRequest{
		Model:  c.Model,
		System: systemPrompt,
		Prompt: buildPrompt(req),
		Stream: false,
		Format: "json",
	}
	var resp ollamaResponse
	if err := postJSON(ctx, "ollama", c.Client, c.Limiter, strings.TrimSuffix(c.Host, "/")+"/api/generate", nil, body, &resp); err != nil {
		return nil, err
	}
	return finishVerdict("ollama", resp.Response)
}
