// Package store owns the database pool and the transactional scope shared by
// every repository.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/opsboard/internal"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const driverName = "pgx"

// Store pairs a sqlx handle (raw reads, catalog scripts) with a gorm handle
// (repositories) over one *sql.DB pool.
type Store struct {
	SQL    *sqlx.DB
	Gorm   *gorm.DB
	logger *slog.Logger
}

func New(sqlDB *sqlx.DB, gormDB *gorm.DB, logger *slog.Logger) *Store {
	return &Store{SQL: sqlDB, Gorm: gormDB, logger: logger}
}

// Open connects to postgres, sizes the pool and layers gorm on the same pool.
func Open(cfg internal.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	sqlDB, err := sqlx.Connect(driverName, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc:        utcNow,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	logger.Info("database pool ready",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns)

	return New(sqlDB, gormDB, logger), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.SQL.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.SQL.Close()
}

// DB returns a gorm session bound to ctx.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.Gorm.WithContext(ctx)
}
