package db

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite" // Pure Go SQLite driver for GORM
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/driver/postgres"    // PostgreSQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger interface
)

// Open connects to the database behind dsn with the named driver
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql", "":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	// Route GORM warnings (slow queries, errors) through logrus
	gormLogger := logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer; serialize access through one connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
