package keyword

import (
	"slices"
	"strings"
)

// Words which, when they show up in a web search snippet next to a domain name, indicate a bad reputation.
var NegativeIndicators = []string{
	"scam",
	"scams",
	"scammer",
	"fraud",
	"fraudulent",
	"phishing",
	"phish",
	"malware",
	"virus",
	"blacklist",
	"blacklisted",
	"blocklist",
	"complaint",
	"complaints",
	"fake",
	"spam",
	"stolen",
	"hacked",
	"warning",
	"ripoff",
}

// Helper to check a single token against a list of tokens
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

// Returns the first token from text which is in the set, or empty string
func FirstTokenInSet(text string, set []string) string {
	for _, tok := range TokenizeText(text) {
		if TokenInSet(tok, set) {
			return tok
		}
	}
	return ""
}

// Checks whether text mentions a domain name. Matching is case-insensitive, and the bare registrable name also counts: "example" for "example.com", and "free site" or "freesite" for "free-site.com".
func MentionsDomain(text, domain string) bool {
	text = strings.ToLower(text)
	domain = strings.ToLower(domain)
	if domain == "" {
		return false
	}
	if strings.Contains(text, domain) {
		return true
	}
	name, _, ok := strings.Cut(domain, ".")
	if !ok || len(name) < 3 {
		return false
	}
	toks := TokenizeText(text)
	if TokenInSet(Slugify(name), toks) {
		return true
	}
	nameToks := TokenizeIdentifier(name)
	if len(nameToks) < 2 {
		return false
	}
	for i := 0; i+len(nameToks) <= len(toks); i++ {
		if slices.Equal(toks[i:i+len(nameToks)], nameToks) {
			return true
		}
	}
	return false
}
