package configstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one stored configuration value.
type Entry struct {
	Section   string `gorm:"primaryKey;size:128"`
	Key       string `gorm:"primaryKey;column:config_key;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName pins the table name.
func (Entry) TableName() string { return "module_config" }

// SQL stores entries in a relational database through GORM.
type SQL struct {
	db     *gorm.DB
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQL)(nil)

// OpenDB opens a GORM connection for driver.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if driver == "sqlite" && dsn == ":memory:" {
		// 每个连接都是独立的内存数据库
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// configurePool applies the pool limits of cfg. In-memory SQLite keeps its
// single connection.
func configurePool(db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" && (cfg.DSN == "" || cfg.DSN == ":memory:") {
		return nil
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// NewSQL migrates the config table and returns the store.
func NewSQL(db *gorm.DB, log *zap.Logger) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate config table: %w", err)
	}
	s := &SQL{db: db, logger: log.With(zap.String("component", "configstore_sql"))}
	s.logger.Info("sql config store initialized", zap.String("dialect", db.Dialector.Name()))
	return s, nil
}

func (s *SQL) Get(ctx context.Context, section, key string) (string, error) {
	if err := validate(section, key); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}

	var e Entry
	err := s.db.WithContext(ctx).Where("section = ? AND config_key = ?", section, key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		s.logger.Error("config get failed", zap.String("section", section), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("config get failed: %w", err)
	}
	return e.Value, nil
}

func (s *SQL) Set(ctx context.Context, section, key, value string) error {
	if err := validate(section, key); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	e := Entry{Section: section, Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "section"}, {Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		s.logger.Error("config set failed", zap.String("section", section), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("config set failed: %w", err)
	}
	return nil
}

func (s *SQL) Section(ctx context.Context, section string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).Where("section = ?", section).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("config section read failed: %w", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

func (s *SQL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *SQL) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
