package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Store interface. All values
// are stored as plain strings; TTLs map directly onto Redis key
// expiry.
type Redis struct {
	Client *redis.Client
}

// NewRedis wraps an already-connected Redis client.
func NewRedis(client *redis.Client) *Redis { return &Redis{Client: client} }

// Get fetches the value under key, translating redis.Nil into
// ErrNotFound so callers never see driver-level sentinels.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Put stores value under key. A non-positive ttl persists the value
// without expiry.
func (s *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.Client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Redis) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// List walks the keyspace with SCAN and returns every key under the
// given prefix. SCAN may visit keys in any order and the result is
// only a snapshot; callers must not assume completeness under
// concurrent writes.
func (s *Redis) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.Client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
