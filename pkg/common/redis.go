package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/recall-hq/recall/pkg/types"
)

// RedisClient wraps a universal go-redis client
type RedisClient struct {
	redis.UniversalClient
}

type redisClientOptions struct {
	clientName string
}

type RedisClientOption func(*redisClientOptions)

// WithClientName sets the client name reported to the server
func WithClientName(name string) RedisClientOption {
	return func(o *redisClientOptions) {
		o.clientName = name
	}
}

// NewRedisClient creates a Redis client and verifies connectivity
func NewRedisClient(cfg types.RedisConfig, opts ...RedisClientOption) (*RedisClient, error) {
	options := &redisClientOptions{clientName: cfg.ClientName}
	for _, opt := range opts {
		opt(options)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		ClientName:   options.clientName,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisClient{UniversalClient: client}, nil
}

// RedisLockOptions control lock acquisition
type RedisLockOptions struct {
	TtlS    int
	Retries int
}

// RedisLock provides named distributed locks backed by redislock
type RedisLock struct {
	client *redislock.Client
	mu     sync.Mutex
	held   map[string]*redislock.Lock
}

func NewRedisLock(rdb *RedisClient) *RedisLock {
	return &RedisLock{
		client: redislock.New(rdb),
		held:   make(map[string]*redislock.Lock),
	}
}

// Acquire takes the named lock, retrying with linear backoff when configured
func (l *RedisLock) Acquire(ctx context.Context, key string, opts RedisLockOptions) error {
	var strategy redislock.RetryStrategy
	if opts.Retries > 0 {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), opts.Retries)
	}

	lock, err := l.client.Obtain(ctx, key, time.Duration(opts.TtlS)*time.Second, &redislock.Options{
		RetryStrategy: strategy,
	})
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	l.mu.Lock()
	l.held[key] = lock
	l.mu.Unlock()
	return nil
}

// Release frees the named lock if held
func (l *RedisLock) Release(key string) error {
	l.mu.Lock()
	lock, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	return lock.Release(context.Background())
}
