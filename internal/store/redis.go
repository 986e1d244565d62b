package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/research"
)

const sessionKeyPrefix = "insight:session:"

// SnapshotStore keeps the latest session snapshot in Redis so progress can
// be inspected while a run is still writing to Postgres only at boundaries.
type SnapshotStore struct {
	client *redis.Client
	cfg    config.RedisConfig
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewSnapshotStore(client *redis.Client, cfg config.RedisConfig) *SnapshotStore {
	return &SnapshotStore{client: client, cfg: cfg}
}

// SaveSession writes the session document under its id.
func (s *SnapshotStore) SaveSession(ctx context.Context, sess *research.Session) error {
	data, err := sess.Marshal()
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKeyPrefix+sess.ID, data, s.cfg.SnapshotTTL).Err()
}

// GetSession loads the snapshot for id, or ErrNotFound.
func (s *SnapshotStore) GetSession(ctx context.Context, id string) (*research.Session, error) {
	val, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return research.UnmarshalSession(val)
}

// DeleteSession drops the snapshot for id.
func (s *SnapshotStore) DeleteSession(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}
