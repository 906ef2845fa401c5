package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	viewPrefix         = "view:"
	lockPrefix         = "lock:"
	revokedPrefix      = "revoked:"
	notificationPrefix = "notifications:"

	// MaxNotifications is the number of feed entries kept per user
	MaxNotifications = 50
)

// releaseLockScript deletes the lock only if it still holds our token
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection for readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetJSON loads a cached view into dest. A miss returns false with no error.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, viewPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached view %s: %w", key, err)
	}
	return true, nil
}

// SetJSON caches a view for ttl
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode view %s: %w", key, err)
	}
	return c.rdb.Set(ctx, viewPrefix+key, raw, ttl).Err()
}

// Delete drops the named views
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = viewPrefix + k
	}
	return c.rdb.Del(ctx, prefixed...).Err()
}

// DeletePattern drops every view whose name matches the glob pattern
func (c *Client) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, viewPrefix+pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

// AcquireLock acquires a distributed lock holding token.
// It returns false when somebody else holds the lock.
func (c *Client) AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockPrefix+lockKey, token, ttl).Result()
}

// ReleaseLock releases a lock previously acquired with token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return releaseLockScript.Run(ctx, c.rdb, []string{lockPrefix + lockKey}, token).Err()
}

// RevokeToken marks a token id as signed out until it would have expired
func (c *Client) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether a token id was signed out
func (c *Client) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PushNotification prepends an entry to the user's feed and trims it
func (c *Client) PushNotification(ctx context.Context, userID string, n models.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := notificationPrefix + userID
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, MaxNotifications-1)
	_, err = pipe.Exec(ctx)
	return err
}

// ListNotifications returns the user's feed, newest first
func (c *Client) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	raws, err := c.rdb.LRange(ctx, notificationPrefix+userID, 0, MaxNotifications-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.Notification, 0, len(raws))
	for _, raw := range raws {
		var n models.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
