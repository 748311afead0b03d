package trust

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	id "trustledger/pkg/domain"
)

// VectorCache holds computed trust vectors for a short TTL. Vectors are
// derived data; staleness up to the TTL only delays, never corrupts.
type VectorCache interface {
	Get(ctx context.Context, agent id.DID) (TrustVector, bool)
	Set(ctx context.Context, agent id.DID, v TrustVector)
}

const (
	vectorKeyPrefix = "trust:vector:"
	vectorCacheTTL  = 60 * time.Second
)

// RedisVectorCache backs the cache with Redis so replicas share it.
type RedisVectorCache struct {
	client *redis.Client
}

func NewRedisVectorCache(client *redis.Client) *RedisVectorCache {
	return &RedisVectorCache{client: client}
}

// Get is best-effort: any Redis or decode failure is a miss.
func (c *RedisVectorCache) Get(ctx context.Context, agent id.DID) (TrustVector, bool) {
	raw, err := c.client.Get(ctx, vectorKeyPrefix+agent.String()).Bytes()
	if err != nil {
		return TrustVector{}, false
	}
	var v TrustVector
	if err := json.Unmarshal(raw, &v); err != nil {
		return TrustVector{}, false
	}
	return v, true
}

// Set is best-effort: failures drop the cache entry, nothing else.
func (c *RedisVectorCache) Set(ctx context.Context, agent id.DID, v TrustVector) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.client.Set(ctx, vectorKeyPrefix+agent.String(), raw, vectorCacheTTL)
}
