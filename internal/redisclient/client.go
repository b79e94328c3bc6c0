package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory-intel/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

const (
	cashStatusKey      = "cash:status"
	latestClearanceKey = "clearance:latest"
)

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock takes a named lock for ttl. It returns the owner token when the
// lock was acquired and an empty token when someone else holds it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock releases a lock previously acquired with token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// CacheCashStatus stores the cash status with TTL
func (c *Client) CacheCashStatus(ctx context.Context, status *models.CashStatus, ttl time.Duration) error {
	return c.setJSON(ctx, cashStatusKey, status, ttl)
}

// GetCachedCashStatus returns the cached cash status, or nil when absent
func (c *Client) GetCachedCashStatus(ctx context.Context) (*models.CashStatus, error) {
	var status models.CashStatus
	found, err := c.getJSON(ctx, cashStatusKey, &status)
	if err != nil || !found {
		return nil, err
	}
	return &status, nil
}

// StoreLatestClearance keeps the most recent clearance batch for readers
func (c *Client) StoreLatestClearance(ctx context.Context, batch *models.ClearanceBatch) error {
	return c.setJSON(ctx, latestClearanceKey, batch, 0)
}

// GetLatestClearance returns the most recent clearance batch, or nil when absent
func (c *Client) GetLatestClearance(ctx context.Context) (*models.ClearanceBatch, error) {
	var batch models.ClearanceBatch
	found, err := c.getJSON(ctx, latestClearanceKey, &batch)
	if err != nil || !found {
		return nil, err
	}
	return &batch, nil
}

func (c *Client) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Client) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}
