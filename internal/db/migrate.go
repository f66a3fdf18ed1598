package db

import (
	"marketplace/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Models lists every persisted model in dependency order
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Company{},
		&domain.Wallet{},
		&domain.Product{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.Transaction{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	return db.AutoMigrate(Models()...)
}
