package modstore

import (
	"context"
	"sync"

	"github.com/linkguard/linkguard/automod/moderation"
)

// Process-local store, for tests and single-instance deployments without a database. History is capped per user.
type MemStore struct {
	lk         sync.Mutex
	records    map[string]*moderation.Record
	history    map[string][]moderation.HistoryEntry
	MaxHistory int
}

var _ moderation.Store = (*MemStore)(nil)
var _ moderation.HistoryStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		records:    make(map[string]*moderation.Record),
		history:    make(map[string][]moderation.HistoryEntry),
		MaxHistory: DefaultMaxHistory,
	}
}

func (s *MemStore) GetRecord(ctx context.Context, userID string) (*moderation.Record, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, moderation.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemStore) CompareAndSet(ctx context.Context, expectedVersion int64, rec *moderation.Record) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	var version int64
	if cur, ok := s.records[rec.UserID]; ok {
		version = cur.Version
	}
	if version != expectedVersion {
		return moderation.ErrConflict
	}
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemStore) AddHistory(ctx context.Context, entry *moderation.HistoryEntry) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	l := append(s.history[entry.UserID], *entry)
	if s.MaxHistory > 0 && len(l) > s.MaxHistory {
		l = l[len(l)-s.MaxHistory:]
	}
	s.history[entry.UserID] = l
	return nil
}

func (s *MemStore) ListHistory(ctx context.Context, userID string, limit int) ([]moderation.HistoryEntry, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	l := s.history[userID]
	out := []moderation.HistoryEntry{}
	for i := len(l) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, l[i])
	}
	return out, nil
}
