package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis adapts a Redis instance to the Cache contract for deployments
// that want the cache to survive process restarts. TTL enforcement is
// delegated to Redis key expiry; the fetch timestamp rides along in
// the stored envelope.
type Redis struct {
	client *redis.Client
	opTTL  time.Duration
}

type redisEnvelope struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewRedis connects to addr (e.g. "localhost:6379").
func NewRedis(addr string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		opTTL:  500 * time.Millisecond,
	}
}

func (r *Redis) Get(key string) (Entry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opTTL)
	defer cancel()

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return Entry{}, false
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry{}, false
	}
	return Entry{Payload: env.Payload, FetchedAt: env.FetchedAt}, true
}

func (r *Redis) Set(key string, payload []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opTTL)
	defer cancel()

	raw, err := json.Marshal(redisEnvelope{Payload: payload, FetchedAt: time.Now()})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache write failed")
	}
}

func (r *Redis) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis cache flush failed")
	}
}

func (r *Redis) Stop() {
	if err := r.client.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close failed")
	}
}
