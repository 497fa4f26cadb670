package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const scanBatch = 500

// RedisStore keeps entries as plain string values with EX. Pattern deletes walk one SCAN over
// the region prefix, filter each page locally, and UNLINK the matches so no single call blocks
// the server.
type RedisStore struct {
	rdb *goredis.Client
}

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Unlink(ctx, keys...).Result()
	return int(n), err
}

func (s *RedisStore) DeleteMatch(ctx context.Context, prefix string, patterns ...string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return total, err
		}
		matched := keys[:0]
		for _, k := range keys {
			if matchAny(patterns, k) {
				matched = append(matched, k)
			}
		}
		if len(matched) > 0 {
			n, err := s.rdb.Unlink(ctx, matched...).Result()
			total += int(n)
			if err != nil {
				return total, err
			}
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// Close is a no-op; the client is shared and closed by its owner.
func (s *RedisStore) Close() error { return nil }
