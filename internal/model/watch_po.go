package model

import "time"

// Claim states of a watch session. A row moves none -> claimable ->
// (pending_onchain ->) claimed and never back past claimable; claimed is
// terminal and enforced in the DAO as well as in the engine.
const (
	ClaimStateNone          = "none"
	ClaimStateClaimable     = "claimable"
	ClaimStatePendingOnline = "pending_onchain"
	ClaimStateClaimed       = "claimed"
)

// WatchSessions accumulates watch progress per episode. Rows are keyed by
// anime id + episode so repeated viewing sessions accumulate, and are never
// deleted; the claimed flag outlives process restarts.
type WatchSessions struct {
	Id      int64  `gorm:"primaryKey"`
	AnimeID string `gorm:"index:idx_watch_episode,unique;size:128"`
	Episode int    `gorm:"index:idx_watch_episode,unique"`

	WatchedSeconds  float64
	DurationSeconds float64

	Eligible      bool
	TriggerReason string // threshold | completion

	ClaimState string `gorm:"size:32;default:none"`
	ClaimTxID  string
	NFTID      string
	ClaimedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WatchSessions) TableName() string { return "watch_sessions" }
