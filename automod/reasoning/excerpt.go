package reasoning

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// max bytes of HTML read from a page
const maxPageBytes = 1 << 20

// max characters of body text retained
const maxExcerptText = 5000

// Summary of a web page, as sent to the AI provider
type Excerpt struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Text           string   `json:"text"`
	Forms          int      `json:"forms"`
	Inputs         int      `json:"inputs"`
	PasswordInputs int      `json:"passwordInputs"`
	Scripts        int      `json:"scripts"`
	ExternalLinks  []string `json:"externalLinks,omitempty"`
}

// Returns the first n characters (not bytes) of the page text
func (ex *Excerpt) Summary(n int) string {
	r := []rune(ex.Text)
	if len(r) <= n {
		return ex.Text
	}
	return string(r[:n])
}

// Fetches a page and extracts an Excerpt. Only HTML responses are parsed.
func FetchExcerpt(ctx context.Context, client *http.Client, link string) (*Excerpt, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "linkguard/"+versioninfo.Short())
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching page failed statusCode=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil && mt != "text/html" && mt != "application/xhtml+xml" {
			return nil, fmt.Errorf("not an HTML page: %s", mt)
		}
	}
	return ParseExcerpt(io.LimitReader(resp.Body, maxPageBytes))
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Extracts an Excerpt from an HTML document
func ParseExcerpt(r io.Reader) (*Excerpt, error) {
	ex := &Excerpt{}
	var text strings.Builder
	z := html.NewTokenizer(r)
	inTitle := false
	// depth of script/style elements; their text is skipped
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				ex.Text = strings.Join(strings.Fields(text.String()), " ")
				if rs := []rune(ex.Text); len(rs) > maxExcerptText {
					ex.Text = string(rs[:maxExcerptText])
				}
				return ex, nil
			}
			return nil, fmt.Errorf("parsing page: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = tt == html.StartTagToken
			case atom.Script, atom.Style, atom.Noscript:
				if tok.DataAtom == atom.Script {
					ex.Scripts++
				}
				if tt == html.StartTagToken {
					skip++
				}
			case atom.Form:
				ex.Forms++
			case atom.Input:
				ex.Inputs++
				if strings.EqualFold(attr(tok, "type"), "password") {
					ex.PasswordInputs++
				}
			case atom.Meta:
				if strings.EqualFold(attr(tok, "name"), "description") || strings.EqualFold(attr(tok, "property"), "og:description") {
					if ex.Description == "" {
						ex.Description = strings.TrimSpace(attr(tok, "content"))
					}
				}
			case atom.A:
				href := attr(tok, "href")
				if strings.HasPrefix(href, "http") && len(ex.ExternalLinks) < 20 {
					ex.ExternalLinks = append(ex.ExternalLinks, href)
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = false
			case atom.Script, atom.Style, atom.Noscript:
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			t := string(z.Text())
			if inTitle {
				if ex.Title == "" {
					ex.Title = strings.TrimSpace(t)
				}
				continue
			}
			if text.Len() < maxExcerptText*4 {
				text.WriteString(t)
				text.WriteString(" ")
			}
		}
	}
}
