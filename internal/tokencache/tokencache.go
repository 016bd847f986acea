// Package tokencache holds OAuth1 request-token secrets for the short
// window between the authorize redirect and the callback.
package tokencache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an authorization may stay in flight.
const DefaultTTL = 10 * time.Minute

// ErrNotFound is returned when a token is absent or expired.
var ErrNotFound = errors.New("request token not found or expired")

// Cache stores one secret per request token. Take is single-use: the
// secret is removed on retrieval so a callback cannot be replayed.
type Cache interface {
	Put(ctx context.Context, token, secret string, ttl time.Duration) error
	Take(ctx context.Context, token string) (string, error)
}

const keyPrefix = "oauth1:request:"

// RedisCache stores secrets in redis with a TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a redis-backed cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Put(ctx context.Context, token, secret string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return c.client.Set(ctx, keyPrefix+token, secret, ttl).Err()
}

func (c *RedisCache) Take(ctx context.Context, token string) (string, error) {
	secret, err := c.client.GetDel(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

type memoryEntry struct {
	secret    string
	expiresAt time.Time
}

// MemoryCache is the in-process fallback used when no redis is configured.
// It only works for a single instance: a callback landing on a different
// replica will not find the secret.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Put(_ context.Context, token, secret string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	c.entries[token] = memoryEntry{secret: secret, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Take(_ context.Context, token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[token]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.entries, token)
		return "", ErrNotFound
	}
	delete(c.entries, token)
	return entry.secret, nil
}

// prune drops expired entries; called with the lock held.
func (c *MemoryCache) prune() {
	now := c.now()
	for token, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, token)
		}
	}
}
