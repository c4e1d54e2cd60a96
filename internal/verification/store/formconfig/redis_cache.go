package formconfig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"veriflow/internal/verification/models"
	"veriflow/internal/verification/ports"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

const (
	cacheKeyPrefix = "veriflow:formconfig:"
	// missMarker caches "form is not configured" so unconfigured forms do not
	// hammer the backing store on every submission.
	missMarker = "__miss__"
)

// RedisCache is a read-through cache in front of another config provider.
// Cache failures degrade to the backing provider; they are never surfaced.
type RedisCache struct {
	client *redis.Client
	next   ports.ConfigProvider
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, next ports.ConfigProvider, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, next: next, ttl: ttl}
}

func (c *RedisCache) GetByFormID(ctx context.Context, formID id.FormID) (*models.FormConfig, error) {
	key := cacheKeyPrefix + string(formID)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if cached == missMarker {
			return nil, sentinel.ErrNotFound
		}
		var config models.FormConfig
		if json.Unmarshal([]byte(cached), &config) == nil {
			return &config, nil
		}
		// Corrupt cache entry; fall through to the backing provider.
	}

	config, err := c.next.GetByFormID(ctx, formID)
	if errors.Is(err, sentinel.ErrNotFound) {
		c.client.Set(ctx, key, missMarker, c.ttl)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(config); marshalErr == nil {
		c.client.Set(ctx, key, payload, c.ttl)
	}
	return config, nil
}
