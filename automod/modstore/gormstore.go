package modstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/threat"

	"gorm.io/gorm"
)

const DefaultMaxHistory = 1000

type ModerationRecord struct {
	ID          uint   `gorm:"primarykey"`
	UserID      string `gorm:"uniqueIndex;not null"`
	Warnings    int
	MuteUntil   *time.Time
	Banned      bool
	LastUpdated time.Time
	Version     int64 `gorm:"not null;default:0"`
}

type LinkHistory struct {
	ID        uint   `gorm:"primarykey"`
	UserID    string `gorm:"index:idx_link_history_user_created,priority:1"`
	EventID   string
	MessageID string
	ChannelID string
	URL       string
	Domain    string `gorm:"index"`
	Score     float64
	Tier      string
	Action    string
	CreatedAt time.Time `gorm:"index:idx_link_history_user_created,priority:2"`
}

// SQL-backed store, using whatever database the gorm connection points at. Compare-and-set is a conditional UPDATE on the version column.
type GormStore struct {
	db *gorm.DB
}

var _ moderation.Store = (*GormStore)(nil)
var _ moderation.HistoryStore = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Creates or updates tables
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&ModerationRecord{}, &LinkHistory{})
}

func timePtrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (m *ModerationRecord) toRecord() *moderation.Record {
	return &moderation.Record{
		UserID:    m.UserID,
		Warnings:  m.Warnings,
		MuteUntil: timePtrUTC(m.MuteUntil),
		Banned:    m.Banned,
		UpdatedAt: m.LastUpdated.UTC(),
		Version:   m.Version,
	}
}

func (s *GormStore) GetRecord(ctx context.Context, userID string) (*moderation.Record, error) {
	var row ModerationRecord
	if err := s.db.WithContext(ctx).Find(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, moderation.ErrNotFound
	}
	return row.toRecord(), nil
}

func (s *GormStore) CompareAndSet(ctx context.Context, expectedVersion int64, rec *moderation.Record) error {
	db := s.db.WithContext(ctx)
	if expectedVersion == 0 {
		row := ModerationRecord{
			UserID:      rec.UserID,
			Warnings:    rec.Warnings,
			MuteUntil:   timePtrUTC(rec.MuteUntil),
			Banned:      rec.Banned,
			LastUpdated: rec.UpdatedAt.UTC(),
			Version:     rec.Version,
		}
		err := db.Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return moderation.ErrConflict
		}
		if err != nil {
			// drivers without error translation: check whether we lost a race
			var n int64
			if cerr := db.Model(&ModerationRecord{}).Where("user_id = ?", rec.UserID).Count(&n).Error; cerr == nil && n > 0 {
				return moderation.ErrConflict
			}
			return fmt.Errorf("creating moderation record: %w", err)
		}
		return nil
	}

	res := db.Model(&ModerationRecord{}).
		Where("user_id = ? AND version = ?", rec.UserID, expectedVersion).
		Updates(map[string]any{
			"warnings":     rec.Warnings,
			"mute_until":   timePtrUTC(rec.MuteUntil),
			"banned":       rec.Banned,
			"last_updated": rec.UpdatedAt.UTC(),
			"version":      rec.Version,
		})
	if res.Error != nil {
		return fmt.Errorf("updating moderation record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return moderation.ErrConflict
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

func (s *GormStore) AddHistory(ctx context.Context, entry *moderation.HistoryEntry) error {
	row := LinkHistory{
		UserID:    entry.UserID,
		EventID:   entry.EventID,
		MessageID: entry.MessageID,
		ChannelID: entry.ChannelID,
		URL:       entry.URL,
		Domain:    entry.Domain,
		Score:     entry.Score,
		Tier:      entry.Tier.String(),
		Action:    string(entry.Action),
		CreatedAt: entry.CreatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) ListHistory(ctx context.Context, userID string, limit int) ([]moderation.HistoryEntry, error) {
	if limit <= 0 || limit > DefaultMaxHistory {
		limit = DefaultMaxHistory
	}
	var rows []LinkHistory
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]moderation.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		tier, err := threat.ParseTier(row.Tier)
		if err != nil {
			return nil, fmt.Errorf("link history row %d: %w", row.ID, err)
		}
		out = append(out, moderation.HistoryEntry{
			EventID:   row.EventID,
			MessageID: row.MessageID,
			UserID:    row.UserID,
			ChannelID: row.ChannelID,
			URL:       row.URL,
			Domain:    row.Domain,
			Score:     row.Score,
			Tier:      tier,
			Action:    moderation.Action(row.Action),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
