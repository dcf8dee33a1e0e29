package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLinks(t *testing.T) {
	assert := assert.New(t)

	now := time.Now()
	msg := MessageEvent{
		EventID:   "evt-1",
		MessageID: "msg-1",
		Text:      "see https://Login.Example.co.uk/a?utm_source=x and login.example.co.uk/a again",
		UserID:    "user-1",
		ChannelID: "chan-1",
		Timestamp: now,
	}

	var links []*LinkEvent
	for le := range msg.Links() {
		links = append(links, le)
	}
	assert.Equal(1, len(links))
	le := links[0]
	assert.Equal("https://login.example.co.uk/a", le.URL)
	assert.Equal("login.example.co.uk", le.Domain)
	assert.Equal("example.co.uk", le.RegistrableDomain())
	assert.Equal("user-1", le.UserID)
	assert.Equal("chan-1", le.ChannelID)
	assert.Equal("evt-1", le.EventID)
	assert.Equal(now, le.Timestamp)
}

func TestLinkEventForURL(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	le, err := LinkEventForURL("example.com:8443/x", time.Now())
	require.NoError(err)
	assert.Equal("https://example.com:8443/x", le.URL)
	assert.Equal("example.com", le.Domain)

	_, err = LinkEventForURL("not a link", time.Now())
	assert.Error(err)
}
