package dataapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DatasetCache stores rendered /generate_data responses for seeded requests.
// Lock serializes generation of one key so concurrent identical requests generate once.
type DatasetCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CacheKey is stable for identical seeded options on the same reference day.
// Unseeded requests are never cached.
func CacheKey(opts models.GenerateOptions) (string, bool) {
	if opts.Seed == nil {
		return "", false
	}
	raw := fmt.Sprintf("%d|%d|%g|%d|%s|%s",
		opts.NumCustomers,
		opts.TransactionsPerAccount,
		opts.LoanProbability,
		*opts.Seed,
		opts.BalanceMode,
		models.NewDate(opts.Now),
	)
	sum := sha256.Sum256([]byte(raw))
	return "generate_data:" + hex.EncodeToString(sum[:16]), true
}

// MemoryCache keeps responses in process memory.
type MemoryCache struct {
	c *cache.Cache

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is dropped from MemoryCache.locks once refs (holder plus waiters) reaches zero.
type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		c:     cache.New(defaultTTL, 2*defaultTTL),
		locks: make(map[string]*keyLock),
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	return b, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.sem
				m.release(key, l)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}
}

func (m *MemoryCache) release(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// RedisCache shares responses across replicas and takes a redislock per key.
type RedisCache struct {
	rdb     *redis.Client
	locker  *redislock.Client
	lockTTL time.Duration
}

func NewRedisCache(rdb *redis.Client, locker *redislock.Client) *RedisCache {
	if locker == nil {
		locker = redislock.New(rdb)
	}
	return &RedisCache{rdb: rdb, locker: locker, lockTTL: 2 * time.Minute}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := r.locker.Obtain(ctx, "lock:"+key, r.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(r.lockTTL/(100*time.Millisecond))),
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(context.Background()) }, nil
}
