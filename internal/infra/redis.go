package infra

import (
	"context"
	"encoding/json"
	"time"

	"posterminal/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	// Validate connectivity at startup
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// PriceCacheTTL bounds how stale a price check may be.
const PriceCacheTTL = 5 * time.Minute

// RedisPriceCache stores price-check answers as JSON. Cache errors are logged
// and treated as misses; the store stays authoritative.
type RedisPriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPriceCache(rdb *redis.Client, ttl time.Duration) *RedisPriceCache {
	if ttl <= 0 {
		ttl = PriceCacheTTL
	}
	return &RedisPriceCache{rdb: rdb, ttl: ttl}
}

func (c *RedisPriceCache) Get(ctx context.Context, key string) (*dto.PriceCheckResponse, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("price cache read failed")
		}
		return nil, false
	}
	var v dto.PriceCheckResponse
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func (c *RedisPriceCache) Set(ctx context.Context, key string, v *dto.PriceCheckResponse) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
	}
}
