package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates the run ledger tables.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&PublishRun{},
		&PublishFailure{},
	)
}
