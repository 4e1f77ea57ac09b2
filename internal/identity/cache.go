package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Cache хэш токена -> id пользователя
type Cache interface {
	Get(ctx context.Context, key string) (uuid.UUID, bool, error)
	Set(ctx context.Context, key string, id uuid.UUID, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "auth:token:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (uuid.UUID, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis get: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("parse cached user id: %w", err)
	}
	return id, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, id uuid.UUID, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, id.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

type cacheEntry struct {
	id      uuid.UUID
	expires time.Time
}

// MemoryCache TTL-кэш в памяти процесса, когда Redis не настроен
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (uuid.UUID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return uuid.Nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return uuid.Nil, false, nil
	}
	return e.id, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, id uuid.UUID, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// чистим просроченное при записи, чтобы карта не росла
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{id: id, expires: now.Add(ttl)}
	return nil
}
