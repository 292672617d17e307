package db

import (
	"storefront_wallet/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Models lists every table owned by the wallet service
var Models = []any{&domain.User{}, &domain.Wallet{}, &domain.Transaction{}, &domain.RefreshToken{}}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	return db.AutoMigrate(Models...)
}
