package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/Domenick1991/appointments/config"
	"github.com/Domenick1991/appointments/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisCache holds short-lived slot reservations, the per-workspace service
// list and the sweep lock.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// AcquireSlotHold claims (service, start) for ttl. False means another request holds it.
func (c *RedisCache) AcquireSlotHold(ctx context.Context, serviceID int64, start time.Time, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, slotHoldKey(serviceID, start), "held", ttl).Result()
}

func (c *RedisCache) ReleaseSlotHold(ctx context.Context, serviceID int64, start time.Time) error {
	return c.client.Del(ctx, slotHoldKey(serviceID, start)).Err()
}

func (c *RedisCache) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// Get returns redis.Nil when the key is absent.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", err
	}
	return value, nil
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// GetServices returns nil, nil on a miss.
func (c *RedisCache) GetServices(ctx context.Context, workspaceID int64) ([]domain.Service, error) {
	data, err := c.client.Get(ctx, servicesKey(workspaceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var services []domain.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *RedisCache) SetServices(ctx context.Context, workspaceID int64, services []domain.Service, ttl time.Duration) error {
	data, err := json.Marshal(services)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, servicesKey(workspaceID), data, ttl).Err()
}

func (c *RedisCache) InvalidateServices(ctx context.Context, workspaceID int64) error {
	return c.client.Del(ctx, servicesKey(workspaceID)).Err()
}

func servicesKey(workspaceID int64) string {
	return fmt.Sprintf("services:workspace:%d", workspaceID)
}

func slotHoldKey(serviceID int64, start time.Time) string {
	return fmt.Sprintf("hold:service:%d:start:%d", serviceID, start.UTC().Unix())
}
