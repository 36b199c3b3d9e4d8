package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "session:"
	redisExpiryIdx = "session:expiry"
)

// RedisStore persists session records as JSON values plus a sorted-set index
// scored by expiry time for range queries. Records carry no Redis TTL: an
// expired record must stay visible until the sweeper marks it and something
// deletes it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) key(id string) string { return redisKeyPrefix + id }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	ok, err := r.client.SetNX(ctx, r.key(s.ID), mustMarshal(s), 0).Result()
	if err != nil {
		return fmt.Errorf("session create: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return r.index(ctx, s)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	ok, err := r.client.SetXX(ctx, r.key(s.ID), mustMarshal(s), 0).Result()
	if err != nil {
		return fmt.Errorf("session update: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return r.index(ctx, s)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.client.ZRem(ctx, redisExpiryIdx, id).Err()
}

func (r *RedisStore) ExpiredBefore(ctx context.Context, t time.Time) ([]*Session, error) {
	ids, err := r.client.ZRangeByScore(ctx, redisExpiryIdx, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(t.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("session expiry scan: %w", err)
	}
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err == ErrNotFound {
			// record gone but index entry lingered; repair
			_ = r.client.ZRem(ctx, redisExpiryIdx, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisStore) index(ctx context.Context, s *Session) error {
	return r.client.ZAdd(ctx, redisExpiryIdx, redis.Z{
		Score:  float64(s.ExpiresAt.Unix()),
		Member: s.ID,
	}).Err()
}

func mustMarshal(s *Session) []byte {
	b, _ := json.Marshal(s)
	return b
}
