package cooldown

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"PairTrader/pkg/logger"
)

const keyPrefix = "pairtrader:cooldown:"

// RedisRegistry keeps cooldowns in Redis so they survive restarts and
// can be shared by replicas. Expiry is delegated to key TTLs. Redis
// errors degrade to "not blocked" so a registry outage never halts
// trading.
type RedisRegistry struct {
	cli *redis.Client
	log *logger.Logger
}

func NewRedisRegistry(cli *redis.Client, log *logger.Logger) *RedisRegistry {
	return &RedisRegistry{cli: cli, log: log}
}

func (r *RedisRegistry) Blocked(pairKey string, now time.Time) bool {
	n, err := r.cli.Exists(context.Background(), keyPrefix+pairKey).Result()
	if err != nil {
		r.log.Warn("cooldown lookup failed",
			logger.String("pair", pairKey),
			logger.Error(err))
		return false
	}
	return n > 0
}

func (r *RedisRegistry) Block(pairKey string, now time.Time, d time.Duration) {
	until := now.Add(d).UTC().Format(time.RFC3339)
	if err := r.cli.Set(context.Background(), keyPrefix+pairKey, until, d).Err(); err != nil {
		r.log.Warn("cooldown store failed",
			logger.String("pair", pairKey),
			logger.Error(err))
	}
}

func (r *RedisRegistry) Snapshot(now time.Time) map[string]time.Time {
	ctx := context.Background()
	out := make(map[string]time.Time)

	iter := r.cli.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.cli.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		until, err := time.Parse(time.RFC3339, val)
		if err != nil {
			continue
		}
		out[key[len(keyPrefix):]] = until
	}
	if err := iter.Err(); err != nil {
		r.log.Warn("cooldown snapshot scan failed", logger.Error(err))
	}
	return out
}
