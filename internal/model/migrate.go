package model

import "gorm.io/gorm"

// AutoMigrate creates or updates the local tables. Both sqlite and
// postgres backends go through the same schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&WalletSessions{}, &WatchSessions{})
}
