package main

import (
	"marketplace/internal/config" // Custom import path (Config)
	"marketplace/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate tables: %v", err)
	}
	logrus.WithField("driver", cfg.DBDriver).Info("Database migrated")
}
