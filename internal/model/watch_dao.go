package model

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// WatchSessionsDao is the durable side of the eligibility engine.
type WatchSessionsDao interface {
	Find(ctx context.Context, animeID string, episode int) (*WatchSessions, error)
	Upsert(ctx context.Context, row *WatchSessions) error
	// BeginClaim atomically moves a claimable, unclaimed row to the given
	// state (pending_onchain or claimed). It returns ErrAlreadyClaimed when
	// the row was claimed before, even by a previous process.
	BeginClaim(ctx context.Context, animeID string, episode int, state string) error
	// RecordMint stores the backend-issued identifiers on an in-flight
	// claim row without touching its state, so a pending row keeps the
	// evidence of an issuance whose confirmation never completed.
	RecordMint(ctx context.Context, animeID string, episode int, txID, nftID string) error
	FinishClaim(ctx context.Context, animeID string, episode int, txID, nftID string) error
	ReleaseClaim(ctx context.Context, animeID string, episode int) error
}

// ErrAlreadyClaimed guards the once-per-episode issuance invariant.
var ErrAlreadyClaimed = errors.New("reward already claimed for this episode")

type watchSessionsDao struct {
	db *gorm.DB
}

func NewWatchSessionsDao(db *gorm.DB) WatchSessionsDao {
	return &watchSessionsDao{db: db}
}

func (d *watchSessionsDao) Find(ctx context.Context, animeID string, episode int) (*WatchSessions, error) {
	var row WatchSessions
	err := d.db.WithContext(ctx).
		Where("anime_id = ? AND episode = ?", animeID, episode).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (d *watchSessionsDao) Upsert(ctx context.Context, row *WatchSessions) error {
	if row.Id != 0 {
		return d.db.WithContext(ctx).Save(row).Error
	}
	var existing WatchSessions
	err := d.db.WithContext(ctx).
		Where("anime_id = ? AND episode = ?", row.AnimeID, row.Episode).
		First(&existing).Error
	if err == nil {
		row.Id = existing.Id
		row.CreatedAt = existing.CreatedAt
		return d.db.WithContext(ctx).Save(row).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return d.db.WithContext(ctx).Create(row).Error
}

func (d *watchSessionsDao) BeginClaim(ctx context.Context, animeID string, episode int, state string) error {
	res := d.db.WithContext(ctx).Model(&WatchSessions{}).
		Where("anime_id = ? AND episode = ? AND claim_state = ?", animeID, episode, ClaimStateClaimable).
		Update("claim_state", state)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either never claimable or already past claimable; distinguish for
		// the caller so the UI can explain.
		row, err := d.Find(ctx, animeID, episode)
		if err != nil {
			return err
		}
		if row.ClaimState == ClaimStateClaimed || row.ClaimState == ClaimStatePendingOnline {
			return ErrAlreadyClaimed
		}
		return ErrNotFound
	}
	return nil
}

func (d *watchSessionsDao) RecordMint(ctx context.Context, animeID string, episode int, txID, nftID string) error {
	updates := map[string]any{"nft_id": nftID}
	if txID != "" {
		updates["claim_tx_id"] = txID
	}
	return d.db.WithContext(ctx).Model(&WatchSessions{}).
		Where("anime_id = ? AND episode = ?", animeID, episode).
		Updates(updates).Error
}

func (d *watchSessionsDao) FinishClaim(ctx context.Context, animeID string, episode int, txID, nftID string) error {
	return d.db.WithContext(ctx).Model(&WatchSessions{}).
		Where("anime_id = ? AND episode = ?", animeID, episode).
		Updates(map[string]any{
			"claim_state": ClaimStateClaimed,
			"claim_tx_id": txID,
			"nft_id":      nftID,
			"claimed_at":  gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

// ReleaseClaim returns a row to claimable after a failed backend call so the
// user may try again. It never touches rows that reached claimed.
func (d *watchSessionsDao) ReleaseClaim(ctx context.Context, animeID string, episode int) error {
	return d.db.WithContext(ctx).Model(&WatchSessions{}).
		Where("anime_id = ? AND episode = ? AND claim_state <> ?", animeID, episode, ClaimStateClaimed).
		Update("claim_state", ClaimStateClaimable).Error
}
