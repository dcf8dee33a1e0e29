package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRateLimited       = errors.New("AI provider rate limited")
	ErrMalformedResponse = errors.New("malformed AI provider response")
)

type Category string

const (
	CategoryPhishing   Category = "phishing"
	CategoryMalware    Category = "malware"
	CategoryScam       Category = "scam"
	CategorySuspicious Category = "suspicious"
	CategoryBenign     Category = "benign"
)

var knownCategories = map[Category]bool{
	CategoryPhishing:   true,
	CategoryMalware:    true,
	CategoryScam:       true,
	CategorySuspicious: true,
	CategoryBenign:     true,
}

type Request struct {
	URL     string
	Excerpt *Excerpt
}

type Verdict struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Indicators []string `json:"indicators,omitempty"`
}

// An AI reasoning service which classifies a web page.
//
// Implementations must respect ctx cancellation, and return ErrRateLimited or ErrMalformedResponse (possibly wrapped) for those conditions.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Verdict, error)
}

const systemPrompt = "You are a security analyst who classifies web pages shared in a community chat. You respond only with a single JSON object."

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Classify the following web page as phishing, malware, scam, suspicious, or benign.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", req.URL)
	if ex := req.Excerpt; ex != nil {
		fmt.Fprintf(&b, "Title: %s\n", ex.Title)
		fmt.Fprintf(&b, "Description: %s\n", ex.Description)
		fmt.Fprintf(&b, "Forms: %d\n", ex.Forms)
		fmt.Fprintf(&b, "Input fields: %d (password fields: %d)\n", ex.Inputs, ex.PasswordInputs)
		fmt.Fprintf(&b, "\nPage text excerpt:\n%s\n", ex.Summary(1000))
	} else {
		b.WriteString("\n(page content could not be fetched)\n")
	}
	b.WriteString(`
Look for fake login pages and credential harvesting, offers that are too good to be true, urgency tactics, malware downloads, and signs of a legitimate business.

Respond with JSON in exactly this form:
{"category": "phishing|malware|scam|suspicious|benign", "confidence": 0.0-1.0, "rationale": "one sentence", "indicators": ["specific indicators found"]}
`)
	return b.String()
}

// Parses a model's text output in to a Verdict. Tolerates markdown code fences and text surrounding the JSON object.
func ParseVerdict(raw string) (*Verdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrMalformedResponse)
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	v.Category = Category(strings.ToLower(strings.TrimSpace(string(v.Category))))
	if !knownCategories[v.Category] {
		return nil, fmt.Errorf("%w: unknown category %q", ErrMalformedResponse, v.Category)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence out of range: %f", ErrMalformedResponse, v.Confidence)
	}
	return &v, nil
}
