package model

import "time"

// WalletSessions persists the provider session across restarts so the
// manager can attempt a silent reconnect at startup. A single row (fixed
// key) is kept; disconnect deletes it.
type WalletSessions struct {
	Id int64 `gorm:"primaryKey"`
	// Key is a fixed identifier; only one session row ever exists.
	Key string `gorm:"uniqueIndex;size:32"`
	// Accounts is the JSON-encoded account list returned by the provider.
	Accounts        string
	ActiveAccount   string
	Connected       bool
	LastConnectedAt time.Time
	UpdatedAt       time.Time
}

func (WalletSessions) TableName() string { return "wallet_sessions" }

// SessionKey is the fixed key of the single persisted wallet session.
const SessionKey = "wallet_session"
