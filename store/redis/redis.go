// Package redis mirrors conversation snapshots into Redis so that
// conversations survive a restart of the server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/session"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "archmesh"

// Config holds the Redis connection and retention settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces keys; defaults to DefaultPrefix.
	Prefix string
	// TTL expires snapshots; zero keeps them forever.
	TTL time.Duration
}

// Store is a session.Mirror backed by Redis.
//
// Keys:
//
//	<prefix>:conv:<id>      JSON snapshot
//	<prefix>:analysis:<id>  JSON of the latest RoomAnalysis
//	<prefix>:conversations  sorted set of ids scored by last update
type Store struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ session.Mirror = (*Store)(nil)

// New connects to Redis and validates the connection.
func New(cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewFromClient(rdb, cfg), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *goredis.Client, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: cfg.TTL}
}

func (s *Store) conversationKey(id string) string { return s.prefix + ":conv:" + id }
func (s *Store) analysisKey(id string) string     { return s.prefix + ":analysis:" + id }
func (s *Store) indexKey() string                 { return s.prefix + ":conversations" }

// Save writes the snapshot, its analysis and the index entry in one
// transaction.
func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.ID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.conversationKey(snap.ID), data, s.ttl)
		if snap.Analysis != nil {
			analysis, err := json.Marshal(snap.Analysis)
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.analysisKey(snap.ID), analysis, s.ttl)
		}
		pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
			Score:  float64(snap.UpdatedAt.UnixMilli()),
			Member: snap.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", snap.ID, err)
	}
	return nil
}

// Load returns the snapshot of id or session.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (session.Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.conversationKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return session.Snapshot{}, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("redis load %s: %w", id, err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Analysis returns the latest stored RoomAnalysis of a conversation.
func (s *Store) Analysis(ctx context.Context, id string) (core.RoomAnalysis, error) {
	data, err := s.rdb.Get(ctx, s.analysisKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.RoomAnalysis{}, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	if err != nil {
		return core.RoomAnalysis{}, fmt.Errorf("redis analysis %s: %w", id, err)
	}
	var a core.RoomAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return core.RoomAnalysis{}, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return a, nil
}

// Delete removes every key of the conversation.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.conversationKey(id), s.analysisKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	return nil
}

// Recent lists up to n conversation ids, most recently updated first.
func (s *Store) Recent(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent: %w", err)
	}
	return ids, nil
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
