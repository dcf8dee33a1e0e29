package modstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linkguard/linkguard/automod/moderation"

	"github.com/redis/go-redis/v9"
)

var (
	redisRecordPrefix  = "modrecord/"
	redisHistoryPrefix = "modhistory/"
)

// Stores each record as a JSON value. Compare-and-set is an optimistic WATCH/MULTI transaction on the record key.
type RedisStore struct {
	Client     *redis.Client
	MaxHistory int
}

var _ moderation.Store = (*RedisStore)(nil)
var _ moderation.HistoryStore = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb, MaxHistory: DefaultMaxHistory}, nil
}

func decodeRecord(b []byte) (*moderation.Record, error) {
	var rec moderation.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decoding moderation record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) GetRecord(ctx context.Context, userID string) (*moderation.Record, error) {
	b, err := s.Client.Get(ctx, redisRecordPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, moderation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(b)
}

func (s *RedisStore) CompareAndSet(ctx context.Context, expectedVersion int64, rec *moderation.Record) error {
	key := redisRecordPrefix + rec.UserID
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	err = s.Client.Watch(ctx, func(tx *redis.Tx) error {
		var version int64
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			cur, err := decodeRecord(b)
			if err != nil {
				return err
			}
			version = cur.Version
		}
		if version != expectedVersion {
			return moderation.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, val, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return moderation.ErrConflict
	}
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) AddHistory(ctx context.Context, entry *moderation.HistoryEntry) error {
	key := redisHistoryPrefix + entry.UserID
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	maxLen := s.MaxHistory
	if maxLen <= 0 {
		maxLen = DefaultMaxHistory
	}
	multi := s.Client.TxPipeline()
	multi.LPush(ctx, key, b)
	multi.LTrim(ctx, key, 0, int64(maxLen-1))
	_, err = multi.Exec(ctx)
	return err
}

func (s *RedisStore) ListHistory(ctx context.Context, userID string, limit int) ([]moderation.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	l, err := s.Client.LRange(ctx, redisHistoryPrefix+userID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]moderation.HistoryEntry, 0, len(l))
	for _, v := range l {
		var entry moderation.HistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("decoding link history: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}
