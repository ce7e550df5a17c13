package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:gema-progress.db?_foreign_keys=on"
)

// pool limits applied to the underlying *sql.DB.
type pool struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// Connect opens the database selected by driver and applies its pool limits.
// SQLite allows a single writer, so its pool is capped at one connection.
func Connect(driver, dsn string) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		limits    pool
	)

	switch driver {
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn must not be empty")
		}
		dialector = postgres.Open(dsn)
		limits = pool{maxOpen: 20, maxIdle: 5, maxLifetime: 30 * time.Minute}
	case DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
		limits = pool{maxOpen: 1, maxIdle: 1}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access %s pool: %w", driver, err)
	}
	sqlDB.SetMaxOpenConns(limits.maxOpen)
	sqlDB.SetMaxIdleConns(limits.maxIdle)
	if limits.maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(limits.maxLifetime)
	}

	return db, nil
}
