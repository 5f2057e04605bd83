// Package storetest builds throwaway sqlite-backed stores for package tests.
package storetest

import (
	"time"

	"github.com/frahmantamala/opsboard/internal/core/datamodel"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/pkg/logger"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns a migrated in-memory store. A single connection keeps every
// query on the same in-memory database.
func Open() (*store.Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(datamodel.All()...); err != nil {
		return nil, err
	}

	return store.New(sqlx.NewDb(sqlDB, "sqlite3"), db, logger.Discard()), nil
}

// MustOpen panics on failure; meant for BeforeEach blocks.
func MustOpen() *store.Store {
	s, err := Open()
	if err != nil {
		panic(err)
	}
	return s
}
