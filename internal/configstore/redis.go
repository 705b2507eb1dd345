package configstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/modulebot/internal/tlsutil"
)

// =============================================================================
// Redis 配置存储
// =============================================================================

// Redis stores each section as a hash under KeyPrefix+section.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg Config, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(opts)

	// 测试连接
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := &Redis{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger.With(zap.String("component", "configstore_redis")),
	}
	r.logger.Info("redis config store initialized", zap.String("addr", cfg.RedisAddr))
	return r, nil
}

func (r *Redis) key(section string) string { return r.prefix + section }

func (r *Redis) Get(ctx context.Context, section, key string) (string, error) {
	if err := validate(section, key); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", ErrClosed
	}

	val, err := r.client.HGet(ctx, r.key(section), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		r.logger.Error("config get failed", zap.String("section", section), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("config get failed: %w", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, section, key, value string) error {
	if err := validate(section, key); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	if err := r.client.HSet(ctx, r.key(section), key, value).Err(); err != nil {
		r.logger.Error("config set failed", zap.String("section", section), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("config set failed: %w", err)
	}
	return nil
}

func (r *Redis) Section(ctx context.Context, section string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	vals, err := r.client.HGetAll(ctx, r.key(section)).Result()
	if err != nil {
		return nil, fmt.Errorf("config section read failed: %w", err)
	}
	return vals, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.logger.Info("closing redis config store")
	return r.client.Close()
}
