package configstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for keys that are not set.
var ErrNotFound = errors.New("config key not found")

// ErrClosed is returned by every call on a closed store.
var ErrClosed = errors.New("config store is closed")

// Store is a sectioned key/value store.
type Store interface {
	Get(ctx context.Context, section, key string) (string, error)
	Set(ctx context.Context, section, key, value string) error
	// Section returns every key of a section. Unknown sections are empty.
	Section(ctx context.Context, section string) (map[string]string, error)
	Close() error
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Pinger = (*Memory)(nil)
	_ Pinger = (*Redis)(nil)
	_ Pinger = (*SQL)(nil)
)

// Config selects and configures a backend.
type Config struct {
	// Driver: memory, redis, sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN for SQL drivers
	DSN string `yaml:"dsn" env:"DSN"`

	// Redis 配置
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix" env:"KEY_PREFIX"`
	RedisTLS      bool   `yaml:"redis_tls" env:"REDIS_TLS"`

	// SQL 连接池
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`

	// 连接超时
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// DefaultConfig returns the in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Driver:      "memory",
		RedisAddr:   "localhost:6379",
		KeyPrefix:   "modulebot:config:",
		DialTimeout: 5 * time.Second,

		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// Open creates the store selected by cfg.Driver.
func Open(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg, logger)
	case "sqlite", "postgres", "mysql":
		db, err := OpenDB(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := configurePool(db, cfg); err != nil {
			return nil, err
		}
		return NewSQL(db, logger)
	default:
		return nil, fmt.Errorf("unsupported config store driver: %s (supported: memory, redis, sqlite, postgres, mysql)", cfg.Driver)
	}
}

func validate(section, key string) error {
	if section == "" || key == "" {
		return fmt.Errorf("config section and key must not be empty")
	}
	return nil
}
