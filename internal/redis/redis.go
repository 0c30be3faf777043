package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"medchat/internal/config"
)

// Client wraps go-redis client to centralize configuration.
// A nil *Client is valid and behaves as if every lock is free.
type Client struct {
	inner *redis.Client
}

// releaseScript deletes a lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// TryLock acquires key for ttl if nobody else holds it. The returned release func
// is always safe to call and only removes the lock this call acquired.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	noop := func() {}
	if c == nil || c.inner == nil {
		return noop, true, nil
	}
	token := uuid.NewString()
	ok, err := c.inner.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, false, err
	}
	if !ok {
		return noop, false, nil
	}
	release := func() {
		// the request context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, c.inner, []string{key}, token).Err()
	}
	return release, true, nil
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
