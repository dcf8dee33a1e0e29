package helpers

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		in  string
		out string
	}{
		{in: "https://Example.COM/path", out: "https://example.com/path"},
		{in: "example.com/path", out: "https://example.com/path"},
		{in: "HTTP://example.com:80/a/../b", out: "http://example.com/b"},
		{in: "https://example.com/page#section", out: "https://example.com/page"},
		{in: "https://example.com/p?utm_source=chat&b=2&a=1&fbclid=xyz", out: "https://example.com/p?a=1&b=2"},
		{in: "https://example.com/p?gclid=abc", out: "https://example.com/p"},
		{in: "https://www.example.co.uk", out: "https://www.example.co.uk"},
		{in: "bücher.de", out: "https://xn--bcher-kva.de"},
		{in: "http://192.168.1.10/login", out: "http://192.168.1.10/login"},
	}

	for _, fix := range fixtures {
		out, err := NormalizeURL(fix.in)
		assert.NoError(err, fix.in)
		assert.Equal(fix.out, out, fix.in)
	}

	bad := []string{
		"",
		"ftp://example.com/file",
		"file.txt",
		"1.2.3",
		"localhost",
		"https://",
		"co.uk",
	}
	for _, b := range bad {
		_, err := NormalizeURL(b)
		assert.ErrorIs(err, ErrNotLink, b)
	}
}

func TestRegistrableDomain(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("example.co.uk", RegistrableDomain("www.example.co.uk"))
	assert.Equal("example.com", RegistrableDomain("a.b.example.com"))
	assert.Equal("192.168.1.10", RegistrableDomain("192.168.1.10"))
	assert.Equal("com", RegistrableDomain("com"))
}

func TestIsSubdomainOf(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsSubdomainOf("google.com", "google.com"))
	assert.True(IsSubdomainOf("mail.google.com", "google.com"))
	assert.False(IsSubdomainOf("notgoogle.com", "google.com"))
	assert.False(IsSubdomainOf("google.com", ""))
}

func TestExtractLinks(t *testing.T) {
	assert := assert.New(t)

	text := "check https://Example.COM/path?utm_source=x&b=2#frag and example.com/path?b=2 also EXAMPLE.com/path?b=2&fbclid=abc, plus file.txt and v1.2.3 and http://bit.ly/abc"
	links := slices.Collect(ExtractLinks(text))
	assert.Equal([]string{"https://example.com/path?b=2", "http://bit.ly/abc"}, links)

	assert.Empty(slices.Collect(ExtractLinks("no links here, just words.")))
	assert.Empty(slices.Collect(ExtractLinks("")))

	// early exit from the consumer is honored
	count := 0
	for range ExtractLinks("a.com b.com c.com") {
		count++
		break
	}
	assert.Equal(1, count)
}
