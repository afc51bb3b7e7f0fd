package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

// Keys look like sf:<family>:<parts...>.
const (
	keyNamespace      = "sf"
	familyIdempotency = "idem"
	familyRedemption  = "redeem"
	familyLock        = "lock"
)

// PendingRecord marks an idempotency key whose first request is still being served.
const PendingRecord = "pending"

var errNotInitialized = errors.New("redis client not initialized")

// releaseLockScript deletes the lock only while it still holds the caller's owner token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type cmdable interface {
	redis.Scripter
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client holds the back office's Redis state: idempotent create responses, redemption
// attempt counters and the cron worker lock.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore keeps one response per (scope, key). Reserve claims the key before
// the handler runs; Complete stores the response; Abandon frees the key for a retry.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string, ttl time.Duration) (stored string, reserved bool, err error)
	Complete(ctx context.Context, scope, key, record string, ttl time.Duration) error
	Abandon(ctx context.Context, scope, key string) error
}

// New connects using cfg and verifies the connection with a PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_db", opts.DB), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers STOREFRONT_REDIS_URL; pool and timeout settings fill in
// whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		if parsed.DB == 0 {
			parsed.DB = cfg.DB
		}
		opts = parsed
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Reserve claims (scope, key) with PendingRecord. When the key is already taken it
// returns the stored value instead, which is PendingRecord while the first request runs.
func (c *Client) Reserve(ctx context.Context, scope, key string, ttl time.Duration) (string, bool, error) {
	if c.store == nil {
		return "", false, errNotInitialized
	}
	full := buildKey(familyIdempotency, scope, key)
	// the holder can expire between SETNX and GET; one more round settles it
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := c.store.SetNX(ctx, full, PendingRecord, ttl).Result()
		if err != nil {
			return "", false, err
		}
		if reserved {
			return "", true, nil
		}
		stored, err := c.store.Get(ctx, full).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		return stored, false, nil
	}
	return "", false, fmt.Errorf("idempotency key %s kept expiring", full)
}

// Complete replaces the reservation with the final record.
func (c *Client) Complete(ctx context.Context, scope, key, record string, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Set(ctx, buildKey(familyIdempotency, scope, key), record, ttl).Err()
}

// Abandon drops a reservation so the caller may retry with the same key.
func (c *Client) Abandon(ctx context.Context, scope, key string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, buildKey(familyIdempotency, scope, key)).Err()
}

// CountRedemptionAttempt adds one attempt to scope's fixed window and returns the
// running total. The window starts with the first attempt.
func (c *Client) CountRedemptionAttempt(ctx context.Context, scope string, window time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	key := buildKey(familyRedemption, scope)
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if window > 0 && count == 1 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// AcquireLock takes the named lock for ttl on behalf of owner.
func (c *Client) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, buildKey(familyLock, name), owner, ttl).Result()
}

// ReleaseLock frees the named lock if owner still holds it and reports whether it did.
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	deleted, err := releaseLockScript.Run(ctx, c.store, []string{buildKey(familyLock, name)}, owner).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func buildKey(family string, parts ...string) string {
	clean := []string{keyNamespace, family}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
