package redis

import (
	"context"
	"errors"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLocked = errors.New("resource is locked by another invocation")

// Locker is an advisory per-key lock. It narrows overlapping invocations for
// one user but does not serialise them.
type Locker interface {
	TryLock(ctx context.Context, key string) (func(), error)
}

type noopLocker struct{}

func (noopLocker) TryLock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NoopLocker never blocks.
func NoopLocker() Locker { return noopLocker{} }

type redisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker returns a SET NX based locker when ENGINE.USER_LOCK is enabled.
func NewLocker(rdb *redis.Client, cfg *config.Config) Locker {
	if !cfg.Engine.UserLock || rdb == nil {
		return NoopLocker()
	}
	ttl := cfg.Engine.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{rdb: rdb, ttl: ttl}
}

func (l *redisLocker) TryLock(ctx context.Context, key string) (func(), error) {
	fullKey := rediskey.BuildLockKey(key)

	ok, err := l.rdb.SetNX(ctx, fullKey, 1, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		if err := l.rdb.Del(context.Background(), fullKey).Err(); err != nil {
			zap.L().Warn("[Redis] failed to release lock", zap.String("key", fullKey), zap.Error(err))
		}
	}, nil
}
