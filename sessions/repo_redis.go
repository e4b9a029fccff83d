package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "session:"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo keeps one hash per session under "session:<id>".
type RedisRepo struct {
	rdb    goredis.UniversalClient
	mu     sync.Mutex
	closed bool
}

// NewRedisRepo connects to the redis URL (redis://host:port/db) and checks it answers.
func NewRedisRepo(ctx context.Context, url string) (*RedisRepo, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address: %w", err)
	}

	repo := NewRedisRepoFromClient(goredis.NewClient(opts))
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Redis session store connected")
	return repo, nil
}

// NewRedisRepoFromClient wraps an existing client
func NewRedisRepoFromClient(rdb goredis.UniversalClient) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func (r *RedisRepo) Get(ctx context.Context, id string) (map[string]string, error) {
	if id == "" {
		return nil, bfferrors.ErrInvalidSessionID
	}
	fields, err := r.rdb.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	return fields, nil
}

// Set writes the fields and renews the TTL in one round trip.
func (r *RedisRepo) Set(ctx context.Context, id string, fields map[string]string, ttl time.Duration) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}
	if len(fields) == 0 {
		return r.Touch(ctx, id, ttl)
	}

	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	key := redisKey(id)
	_, err := r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (r *RedisRepo) Remove(ctx context.Context, id string, keys ...string) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.HDel(ctx, redisKey(id), keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (r *RedisRepo) Purge(ctx context.Context, id string) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}
	if err := r.rdb.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisRepo) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return bfferrors.ErrInvalidSessionID
	}
	if err := r.rdb.Expire(ctx, redisKey(id), ttl).Err(); err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	return nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	pong, err := r.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// Close closes the connection pool. Safe to call multiple times.
func (r *RedisRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.rdb.Close()
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}
