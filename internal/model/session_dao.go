package model

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = gorm.ErrRecordNotFound

// SessionsDao persists the single wallet session row.
type SessionsDao interface {
	Save(ctx context.Context, accounts string, activeAccount string) error
	Load(ctx context.Context) (*WalletSessions, error)
	Clear(ctx context.Context) error
}

type sessionsDao struct {
	db *gorm.DB
}

func NewSessionsDao(db *gorm.DB) SessionsDao {
	return &sessionsDao{db: db}
}

// Save upserts the session row under the fixed key.
func (d *sessionsDao) Save(ctx context.Context, accounts string, activeAccount string) error {
	row := &WalletSessions{
		Key:             SessionKey,
		Accounts:        accounts,
		ActiveAccount:   activeAccount,
		Connected:       true,
		LastConnectedAt: time.Now(),
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"accounts", "active_account", "connected", "last_connected_at", "updated_at"}),
	}).Create(row).Error
}

// Load retrieves the persisted session, ErrNotFound when none exists.
func (d *sessionsDao) Load(ctx context.Context) (*WalletSessions, error) {
	var row WalletSessions
	err := d.db.WithContext(ctx).Where("key = ?", SessionKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Clear removes the persisted session. Missing rows are not an error;
// disconnect must always succeed locally.
func (d *sessionsDao) Clear(ctx context.Context) error {
	return d.db.WithContext(ctx).Where("key = ?", SessionKey).Delete(&WalletSessions{}).Error
}
