package event

import (
	"iter"
	"time"

	"github.com/linkguard/linkguard/automod/helpers"
)

// A chat message as delivered by the gateway. Any links in the text are analyzed, and moderation decisions are made about the author.
type MessageEvent struct {
	// Gateway-assigned identifier for this delivery. Replays of the same event are de-duplicated on this.
	EventID   string    `json:"event_id"`
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Represents a single link posted by a user. Immutable once created; shared (read-only) between all signal checkers.
type LinkEvent struct {
	EventID   string
	MessageID string
	// Normalized URL (see helpers.NormalizeURL)
	URL string
	// Lower-case, punycode-encoded hostname from URL (no port)
	Domain    string
	UserID    string
	ChannelID string
	Timestamp time.Time
}

// Returns the registrable ("eTLD+1") part of the link's domain
func (le *LinkEvent) RegistrableDomain() string {
	return helpers.RegistrableDomain(le.Domain)
}

// Creates a LinkEvent for an already-normalized URL, in the context of a message.
func NewLinkEvent(msg *MessageEvent, link string) *LinkEvent {
	return &LinkEvent{
		EventID:   msg.EventID,
		MessageID: msg.MessageID,
		URL:       link,
		Domain:    helpers.LinkHost(link),
		UserID:    msg.UserID,
		ChannelID: msg.ChannelID,
		Timestamp: msg.Timestamp,
	}
}

// Lazily yields one LinkEvent per distinct link in the message text.
func (msg *MessageEvent) Links() iter.Seq[*LinkEvent] {
	return func(yield func(*LinkEvent) bool) {
		for link := range helpers.ExtractLinks(msg.Text) {
			if !yield(NewLinkEvent(msg, link)) {
				return
			}
		}
	}
}

// Creates a standalone LinkEvent for a single raw URL (eg, from the CLI). Returns an error if the URL can not be normalized.
func LinkEventForURL(raw string, now time.Time) (*LinkEvent, error) {
	link, err := helpers.NormalizeURL(raw)
	if err != nil {
		return nil, err
	}
	return &LinkEvent{
		URL:       link,
		Domain:    helpers.LinkHost(link),
		Timestamp: now,
	}, nil
}
