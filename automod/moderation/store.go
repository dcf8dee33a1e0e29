package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/linkguard/linkguard/automod/threat"
)

var (
	// no record exists for the user
	ErrNotFound = errors.New("moderation record not found")
	// the stored record version did not match the expected version
	ErrConflict = errors.New("moderation record version conflict")
)

// Durable storage of moderation records.
type Store interface {
	GetRecord(ctx context.Context, userID string) (*Record, error)
	// Writes rec if and only if the stored version equals expectedVersion (0 means "no record exists yet"). rec.Version should already be set to the new version. Returns ErrConflict on a version mismatch.
	CompareAndSet(ctx context.Context, expectedVersion int64, rec *Record) error
	Ping(ctx context.Context) error
}

// One processed link, for later review
type HistoryEntry struct {
	EventID   string      `json:"event_id"`
	MessageID string      `json:"message_id"`
	UserID    string      `json:"user_id"`
	ChannelID string      `json:"channel_id"`
	URL       string      `json:"url"`
	Domain    string      `json:"domain"`
	Score     float64     `json:"score"`
	Tier      threat.Tier `json:"tier"`
	Action    Action      `json:"action"`
	CreatedAt time.Time   `json:"created_at"`
}

type HistoryStore interface {
	AddHistory(ctx context.Context, entry *HistoryEntry) error
	// Most recent first
	ListHistory(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
}
