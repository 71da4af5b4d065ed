package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
	"github.com/redis/go-redis/v9"
)

const createdAtField = "__created_at"

// setScript writes a field only while the session hash exists, refreshing its TTL
var setScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1
`)

// deleteScript removes a field only while the session hash exists
var deleteScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HDEL", KEYS[1], ARGV[1])
return 1
`)

// RedisStore is a Redis implementation of the SessionStore interface.
// Each session is a hash; the key TTL is refreshed on every write.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   options
}

var _ ports.SessionStore = (*RedisStore)(nil)

// NewRedisStore creates a new Redis session store
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "sudomode:session:",
		opts:   buildOptions(opts),
	}
}

// Create starts an empty session
func (s *RedisStore) Create(ctx context.Context) (ports.Session, error) {
	id := uuid.New().String()
	key := s.prefix + id

	now := strconv.FormatInt(s.opts.clock.Now().Unix(), 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, createdAtField, now)
		if s.opts.ttl > 0 {
			pipe.Expire(ctx, key, s.opts.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &redisSession{id: id, key: key, store: s}, nil
}

// Load returns the session with the given ID
func (s *RedisStore) Load(ctx context.Context, id string) (ports.Session, error) {
	key := s.prefix + id

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if n == 0 {
		return nil, core.ErrSessionNotFound
	}

	return &redisSession{id: id, key: key, store: s}, nil
}

// Destroy removes a session
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

type redisSession struct {
	id    string
	key   string
	store *RedisStore
}

func (r *redisSession) ID() string {
	return r.id
}

func (r *redisSession) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.store.client.HGet(ctx, r.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return value, true, nil
}

func (r *redisSession) Set(ctx context.Context, key, value string) error {
	ttl := r.store.opts.ttl.Milliseconds()
	ok, err := setScript.Run(ctx, r.store.client, []string{r.key}, key, value, ttl).Int()
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if ok == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (r *redisSession) Delete(ctx context.Context, key string) error {
	ok, err := deleteScript.Run(ctx, r.store.client, []string{r.key}, key).Int()
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if ok == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}
