package vschallan

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/invento-software-limited/Smart-Vat-Challan/models"
)

// ReferenceCache holds reference lists read from the repository, keyed by kind
// and parent filter.
type ReferenceCache interface {
	Get(ctx context.Context, kind models.ReferenceKind, parentID string, dest any) (bool, error)
	Set(ctx context.Context, kind models.ReferenceKind, parentID string, value any) error
	Invalidate(ctx context.Context, kind models.ReferenceKind) error
}

type NoopReferenceCache struct{}

func (NoopReferenceCache) Get(context.Context, models.ReferenceKind, string, any) (bool, error) {
	return false, nil
}

func (NoopReferenceCache) Set(context.Context, models.ReferenceKind, string, any) error {
	return nil
}

func (NoopReferenceCache) Invalidate(context.Context, models.ReferenceKind) error {
	return nil
}

// RedisReferenceCache stores lists as JSON under vschallan:ref:<kind>:<parent>
// and tracks the keys of each kind in a set for invalidation.
type RedisReferenceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisReferenceCache(rdb *redis.Client, ttl time.Duration) *RedisReferenceCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisReferenceCache{rdb: rdb, ttl: ttl}
}

func referenceCacheKey(kind models.ReferenceKind, parentID string) string {
	if parentID == "" {
		parentID = "all"
	}
	return "vschallan:ref:" + string(kind) + ":" + parentID
}

func referenceIndexKey(kind models.ReferenceKind) string {
	return "vschallan:ref:" + string(kind) + ":keys"
}

func (c *RedisReferenceCache) Get(ctx context.Context, kind models.ReferenceKind, parentID string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, referenceCacheKey(kind, parentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisReferenceCache) Set(ctx context.Context, kind models.ReferenceKind, parentID string, value any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	key := referenceCacheKey(kind, parentID)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, raw, c.ttl)
	pipe.SAdd(ctx, referenceIndexKey(kind), key)
	pipe.Expire(ctx, referenceIndexKey(kind), c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisReferenceCache) Invalidate(ctx context.Context, kind models.ReferenceKind) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	indexKey := referenceIndexKey(kind)
	keys, err := c.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	keys = append(keys, indexKey)
	return c.rdb.Del(ctx, keys...).Err()
}

var ErrLockHeld = errors.New("lock held by another worker")

// Locker guards work that must not run twice at the same time across workers.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// LocalLocker is an in-process Locker for single-instance runs and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]time.Time{}}
}

func (l *LocalLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.held[key]; ok && time.Now().Before(until) {
		return nil, ErrLockHeld
	}
	l.held[key] = time.Now().Add(ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}
