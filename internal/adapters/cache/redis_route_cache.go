package cache

import (
	"context"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisRoutePrefix = "route:"

// RedisRouteCache stores routing results in Redis with a TTL.
type RedisRouteCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisRouteCache {
	return &RedisRouteCache{Client: client, TTL: ttl, Logger: logger}
}

func (r *RedisRouteCache) Get(ctx context.Context, key string) (_ []domain.RouteSegment, _ bool, err error) {
	defer obs.Time(ctx, r.Logger, "route.redis.Get")(&err)

	body, err := r.Client.Get(ctx, redisRoutePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get redis route cache: %w", err)
	}

	var segs []domain.RouteSegment
	if err := json.Unmarshal(body, &segs); err != nil {
		return nil, false, fmt.Errorf("get redis route cache: decode %q: %w", key, err)
	}
	return segs, true, nil
}

func (r *RedisRouteCache) Put(ctx context.Context, key string, segs []domain.RouteSegment) (err error) {
	defer obs.Time(ctx, r.Logger, "route.redis.Put")(&err)

	body, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("put redis route cache: encode: %w", err)
	}
	// A zero TTL means no expiry.
	if err := r.Client.Set(ctx, redisRoutePrefix+key, body, r.TTL).Err(); err != nil {
		return fmt.Errorf("put redis route cache: %w", err)
	}
	return nil
}
