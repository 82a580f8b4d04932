package selector

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/relaygate/core/internal/logging"
)

// RedisExcludedSet backs the excluded set with Redis SET EX / EXISTS / SCAN,
// letting the quota-exhausted set be shared across multiple gateway
// instances. Falls back to logging-and-ignoring on transient Redis errors
// rather than failing the request path; a missed exclusion only costs one
// spurious retry, which the design explicitly tolerates.
type RedisExcludedSet struct {
	client *redis.Client
}

var _ ExcludedSet = (*RedisExcludedSet)(nil)

// NewRedisExcludedSet wires addr (host:port) as the excluded-set backend.
func NewRedisExcludedSet(addr string) *RedisExcludedSet {
	return &RedisExcludedSet{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func redisExcludedKey(vendor string, id int) string {
	return "relaygate:excluded:" + vendor + ":" + strconv.Itoa(id)
}

func (s *RedisExcludedSet) Add(ctx context.Context, vendor string, id int, until time.Time) {
	ttl := time.Until(until)
	if ttl <= 0 {
		return
	}
	if err := s.client.Set(ctx, redisExcludedKey(vendor, id), "1", ttl).Err(); err != nil {
		logging.SysError("redis excluded-set add failed", errField(err))
	}
}

func (s *RedisExcludedSet) Contains(ctx context.Context, vendor string, id int) bool {
	n, err := s.client.Exists(ctx, redisExcludedKey(vendor, id)).Result()
	if err != nil {
		logging.SysError("redis excluded-set lookup failed", errField(err))
		return false
	}
	return n > 0
}

// Clear scans and deletes every key for vendor using SCAN so it never blocks
// the Redis server the way KEYS would under a large exclusion set.
func (s *RedisExcludedSet) Clear(ctx context.Context, vendor string) {
	prefix := "relaygate:excluded:" + vendor + ":"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			logging.SysError("redis excluded-set scan failed", errField(err))
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				logging.SysError("redis excluded-set delete failed", errField(err))
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
