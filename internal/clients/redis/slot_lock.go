package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/slotlock"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

type slotLocker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

// NewSlotLocker connects to Redis and returns a slotlock.Locker shared by every replica.
func NewSlotLocker(log *logger.Logger, cfg Config) (slotlock.Locker, func() error, error) {
	if log == nil {
		return nil, nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return newSlotLocker(log, rdb, cfg.Prefix), rdb.Close, nil
}

func newSlotLocker(log *logger.Logger, rdb goredis.UniversalClient, prefix string) *slotLocker {
	if prefix == "" {
		prefix = "bloomie:slot:"
	}
	return &slotLocker{log: log.With("service", "RedisSlotLocker"), rdb: rdb, prefix: prefix}
}

func (l *slotLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("redis slot %s: ttl required", key)
	}
	k := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, k, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if ok {
		return true, nil
	}
	// Re-acquiring our own lease extends it.
	return l.Refresh(ctx, key, owner, ttl)
}

func (l *slotLocker) Refresh(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("redis slot %s: ttl required", key)
	}
	n, err := refreshScript.Run(ctx, l.rdb, []string{l.prefix + key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis refresh %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *slotLocker) Release(ctx context.Context, key, owner string) error {
	if _, err := releaseScript.Run(ctx, l.rdb, []string{l.prefix + key}, owner).Int64(); err != nil {
		l.log.Warn("slot release failed", "key", key, "error", err)
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

func (l *slotLocker) Holder(ctx context.Context, key string) (string, bool, error) {
	v, err := l.rdb.Get(ctx, l.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}
