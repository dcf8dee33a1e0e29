package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, โลก!", out: []string{"hello", "โลก"}},
		{text: "Gdańsk", out: []string{"gdansk"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeText(fix.text))
	}
}

func TestTokenizeIdentifier(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{}, TokenizeIdentifier(""))
	assert.Equal([]string{"secure", "login", "paypal", "example", "com"}, TokenizeIdentifier("secure-login.paypal.example.com"))
	assert.Equal([]string{"free", "nitro"}, TokenizeIdentifier("Free_Nitro"))
	// single characters are dropped
	assert.Equal([]string{"go", "pay"}, TokenizeIdentifier("x.go-pay.y"))
	assert.Equal([]string{"xn", "80ak6aa92e"}, TokenizeIdentifier("xn--80ak6aa92e"))
}
