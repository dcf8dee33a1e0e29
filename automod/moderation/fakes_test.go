package moderation

import (
	"context"
	"errors"
	"sync"
)

type testStore struct {
	mu      sync.Mutex
	records map[string]*Record
	// number of upcoming CompareAndSet calls to fail with ErrConflict
	conflicts int
	// returned from every call, if set
	down   error
	writes int
}

func newTestStore() *testStore {
	return &testStore{records: make(map[string]*Record)}
}

func (s *testStore) GetRecord(ctx context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down != nil {
		return nil, s.down
	}
	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *testStore) CompareAndSet(ctx context.Context, expectedVersion int64, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down != nil {
		return s.down
	}
	if s.conflicts > 0 {
		s.conflicts--
		return ErrConflict
	}
	var version int64
	if cur, ok := s.records[rec.UserID]; ok {
		version = cur.Version
	}
	if version != expectedVersion {
		return ErrConflict
	}
	s.records[rec.UserID] = rec.Clone()
	s.writes++
	return nil
}

func (s *testStore) Ping(ctx context.Context) error {
	return s.down
}

var errStoreDown = errors.New("connection refused")
