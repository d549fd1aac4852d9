package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readr-media/readr-bff/internal/observability"
)

// Cache defaults.
const (
	DefaultCacheTTL = 60 * time.Second
	DefaultCacheKey = "readr-bff:permissions"

	pingTimeout = 5 * time.Second
)

// CachedCatalogue keeps the catalogue in Redis for a TTL. Redis failures
// fall through to the wrapped catalogue; they never fail a request.
type CachedCatalogue struct {
	next   Catalogue
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger observability.Logger
}

// CacheOption is a functional option for the cached catalogue.
type CacheOption func(*CachedCatalogue)

// WithCacheTTL sets the TTL of the cached catalogue.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedCatalogue) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheKey sets the Redis key.
func WithCacheKey(key string) CacheOption {
	return func(c *CachedCatalogue) {
		if key != "" {
			c.key = key
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger observability.Logger) CacheOption {
	return func(c *CachedCatalogue) {
		c.logger = logger
	}
}

// NewCachedCatalogue wraps next with a Redis cache.
func NewCachedCatalogue(next Catalogue, client redis.UniversalClient, opts ...CacheOption) *CachedCatalogue {
	c := &CachedCatalogue{
		next:   next,
		client: client,
		key:    DefaultCacheKey,
		ttl:    DefaultCacheTTL,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Permissions returns the cached catalogue, fetching it on a miss.
func (c *CachedCatalogue) Permissions(ctx context.Context) ([]Permission, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var perms []Permission
		if jsonErr := json.Unmarshal(data, &perms); jsonErr == nil {
			return perms, nil
		}
		c.logger.Warn("discarding undecodable cached catalogue",
			observability.String("key", c.key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("permission cache read failed",
			observability.String("key", c.key),
			observability.Error(err))
	}

	perms, err := c.next.Permissions(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(perms); err == nil {
		if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("permission cache write failed",
				observability.String("key", c.key),
				observability.Error(err))
		}
	}
	return perms, nil
}

// Invalidate drops the cached catalogue.
func (c *CachedCatalogue) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// NewRedisClient connects to addr, which is either a redis:// URL or a
// host:port pair, and verifies the connection.
func NewRedisClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
