package inflight

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

const keyPrefix = "clinic:inflight:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease that was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares holds between server replicas. Each hold is a lease that
// expires after ttl so a crashed holder cannot wedge a key.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, keyPrefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, apperr.Transport(err, "acquire guard for %s", key)
	}
	if !ok {
		return nil, apperr.Busy("%s is already being updated", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must outlive a cancelled request context.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, g.client, []string{keyPrefix + key}, token).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to release in-flight guard")
			}
		})
	}, nil
}

func (g *RedisGuard) Held(ctx context.Context, key string) bool {
	n, err := g.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// HeldKeys asks for every key with a single MGET. A failed lookup reports
// nothing held, as Held does.
func (g *RedisGuard) HeldKeys(ctx context.Context, keys []string) map[string]bool {
	held := make(map[string]bool)
	if len(keys) == 0 {
		return held
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	vals, err := g.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		log.Warn().Err(err).Int("keys", len(keys)).Msg("in-flight guard lookup failed")
		return held
	}
	for i, v := range vals {
		if v != nil {
			held[keys[i]] = true
		}
	}
	return held
}
