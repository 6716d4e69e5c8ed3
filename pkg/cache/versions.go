package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// VersionStore keeps one counter per tag. Bumping a tag makes every entry
// recorded under an older version stale.
type VersionStore interface {
	Versions(ctx context.Context, tags []Tag) ([]uint64, error)
	Bump(ctx context.Context, tags []Tag) error
}

// MemoryVersionStore is a process-local VersionStore
type MemoryVersionStore struct {
	mu       sync.RWMutex
	versions map[Tag]uint64
}

func NewMemoryVersionStore() *MemoryVersionStore {
	return &MemoryVersionStore{versions: map[Tag]uint64{}}
}

func (s *MemoryVersionStore) Versions(_ context.Context, tags []Tag) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, len(tags))
	for i, t := range tags {
		out[i] = s.versions[t]
	}
	return out, nil
}

func (s *MemoryVersionStore) Bump(_ context.Context, tags []Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tags {
		s.versions[t]++
	}
	return nil
}

// RedisVersionStore shares tag versions between processes through Redis
type RedisVersionStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisVersionStore(rdb redis.Cmdable, prefix string) *RedisVersionStore {
	if prefix == "" {
		prefix = "catalog:tagver:"
	}
	return &RedisVersionStore{rdb: rdb, prefix: prefix}
}

func (s *RedisVersionStore) key(t Tag) string {
	return s.prefix + t.String()
}

func (s *RedisVersionStore) Versions(ctx context.Context, tags []Tag) ([]uint64, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = s.key(t)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read tag versions: %w", err)
	}

	out := make([]uint64, len(tags))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt version for %s: %w", tags[i], err)
		}
		out[i] = n
	}
	return out, nil
}

func (s *RedisVersionStore) Bump(ctx context.Context, tags []Tag) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range tags {
			pipe.Incr(ctx, s.key(t))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to bump tag versions: %w", err)
	}
	return nil
}

var (
	_ VersionStore = (*MemoryVersionStore)(nil)
	_ VersionStore = (*RedisVersionStore)(nil)
)
