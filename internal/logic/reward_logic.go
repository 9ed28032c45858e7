package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"otakuverse/internal/algoutil"
	"otakuverse/internal/errs"
	"otakuverse/internal/logic/mint"
	"otakuverse/internal/logic/reward"
	"otakuverse/internal/logic/transaction"
	"otakuverse/internal/model"
	"otakuverse/internal/svc"
	"otakuverse/internal/types"
)

type RewardLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewRewardLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RewardLogic {
	return &RewardLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

func (l *RewardLogic) Progress(req *types.ProgressReq) (*types.RewardStatusResp, error) {
	snap, err := l.svcCtx.Reward.Progress(l.ctx, req.AnimeID, req.Episode, req.Position, req.Duration)
	if err != nil {
		return nil, err
	}
	return statusResp(req.AnimeID, req.Episode, snap), nil
}

func (l *RewardLogic) Ended(req *types.EndedReq) (*types.RewardStatusResp, error) {
	snap, err := l.svcCtx.Reward.Ended(l.ctx, req.AnimeID, req.Episode)
	if err != nil {
		return nil, err
	}
	return statusResp(req.AnimeID, req.Episode, snap), nil
}

func (l *RewardLogic) Status(req *types.RewardStatusReq) (*types.RewardStatusResp, error) {
	snap, err := l.svcCtx.Reward.Status(l.ctx, req.AnimeID, req.Episode)
	if err != nil {
		return nil, err
	}
	return statusResp(req.AnimeID, req.Episode, snap), nil
}

// Claim runs the full reward issuance flow: guard the once-per-episode
// invariant, compose the mint payload, call the backend and, when the
// backend hands back an unsigned transaction, sign/broadcast/confirm it.
func (l *RewardLogic) Claim(req *types.ClaimReq) (*types.ClaimResp, error) {
	if req.AnimeID == "" || req.Episode <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "anime id and positive episode number are required")
	}
	userWallet, ok := l.svcCtx.Wallet.ActiveAccount()
	if !ok {
		return nil, errs.New(errs.KindNoSession, "wallet not connected")
	}

	row, err := l.svcCtx.Watches.Find(l.ctx, req.AnimeID, req.Episode)
	if err != nil {
		if err == model.ErrNotFound {
			return nil, errs.New(errs.KindInvalidInput, "episode is not claimable")
		}
		return nil, errs.Wrap(errs.KindStorageUnavailable, "load watch session", err)
	}

	// The claim row moves to pending before any external call so a crash
	// mid-flight never double-issues.
	if err := l.svcCtx.Reward.BeginClaim(l.ctx, req.AnimeID, req.Episode, model.ClaimStatePendingOnline); err != nil {
		return nil, err
	}

	resp, minted, err := l.executeClaim(req, userWallet, row)
	if err != nil && !minted {
		// Nothing was issued yet, so the row may safely go back to
		// claimable for a retry.
		if relErr := l.svcCtx.Reward.ReleaseClaim(l.ctx, req.AnimeID, req.Episode); relErr != nil {
			l.Errorf("failed to release claim after error: %v", relErr)
		}
	}
	return resp, err
}

// executeClaim runs the claim against the backend and the chain. The
// returned bool reports whether the backend recorded an issuance: from that
// point the row must never return to claimable, whatever happens to the
// on-chain leg, or a retry would request a second mint for the episode.
func (l *RewardLogic) executeClaim(req *types.ClaimReq, userWallet string, row *model.WatchSessions) (*types.ClaimResp, bool, error) {
	anime := l.animeMetadata(req.AnimeID)

	payload, err := l.svcCtx.Composer.Compose(mint.ComposeInput{
		UserWallet:      userWallet,
		Anime:           anime,
		Episode:         req.Episode,
		WatchedSeconds:  row.WatchedSeconds,
		DurationSeconds: row.DurationSeconds,
		TriggerReason:   row.TriggerReason,
		SessionID:       reward.SessionID(req.AnimeID, req.Episode),
		Now:             time.Now(),
	})
	if err != nil {
		return nil, false, err
	}

	result, err := l.svcCtx.Minter.Mint(l.ctx, payload)
	if err != nil {
		return nil, false, err
	}

	nftID := result.NFTID
	if nftID == "" {
		nftID = payload.NFTMetadata.ID
	}
	txID := result.TransactionID

	// Persist the issuance evidence on the pending row immediately.
	if recErr := l.svcCtx.Reward.RecordMint(l.ctx, req.AnimeID, req.Episode, txID, nftID); recErr != nil {
		l.Errorf("failed to record mint identifiers (continuing): %v", recErr)
	}

	if result.UnsignedTransaction != "" {
		txID, err = l.signAndConfirm(result.UnsignedTransaction)
		if txID != "" {
			if recErr := l.svcCtx.Reward.RecordMint(l.ctx, req.AnimeID, req.Episode, txID, nftID); recErr != nil {
				l.Errorf("failed to record mint identifiers (continuing): %v", recErr)
			}
		}
		if errs.IsKind(err, errs.KindConfirmationTimeout) {
			// Outcome unknown: the transaction may still confirm. The row
			// stays pending_onchain; claimable is not restored.
			l.Errorf("claim transaction for %s/%d unconfirmed: %v", req.AnimeID, req.Episode, err)
			return &types.ClaimResp{
				NFTID:   nftID,
				TxID:    txID,
				State:   model.ClaimStatePendingOnline,
				Message: "mint submitted, on-chain confirmation still pending",
			}, true, nil
		}
		if err != nil {
			// Sign or broadcast failed after the backend recorded the
			// mint. The row stays pending_onchain with the identifiers.
			l.Errorf("on-chain leg of claim for %s/%d failed after issuance: %v", req.AnimeID, req.Episode, err)
			return nil, true, err
		}
	}

	if err := l.svcCtx.Reward.FinishClaim(l.ctx, req.AnimeID, req.Episode, txID, nftID); err != nil {
		return nil, true, err
	}
	l.Infof("reward for %s/%d claimed, nft %s tx %s", req.AnimeID, req.Episode, nftID, txID)
	return &types.ClaimResp{
		NFTID:   nftID,
		TxID:    txID,
		State:   model.ClaimStateClaimed,
		Message: "reward claimed",
	}, true, nil
}

// animeMetadata fetches the catalog record; a catalog outage degrades to
// placeholder metadata rather than blocking the claim.
func (l *RewardLogic) animeMetadata(animeID string) *types.AnimeMetadata {
	anime, err := l.svcCtx.Catalog.GetAnime(l.ctx, animeID)
	if err != nil {
		l.Errorf("catalog lookup for %s failed, using placeholder metadata: %v", animeID, err)
		return &types.AnimeMetadata{ID: animeID, Title: animeID}
	}
	return anime
}

// signAndConfirm decodes the backend's unsigned transaction, signs it with
// the active account and pushes it through the confirmation pipeline.
func (l *RewardLogic) signAndConfirm(unsigned string) (string, error) {
	txn, err := algoutil.DecodeUnsignedTransaction(unsigned)
	if err != nil {
		return "", err
	}
	signed, _, err := l.svcCtx.Wallet.SignTransaction(l.ctx, txn)
	if err != nil {
		return "", err
	}
	txID, err := l.svcCtx.Node.SendRawTransaction(l.ctx, signed)
	if err != nil {
		return "", errs.Wrap(errs.KindNodeRejected, "broadcast mint transaction", err)
	}

	txnLogic := transaction.NewTransactionLogic(l.ctx, l.svcCtx)
	if _, err := txnLogic.WaitForConfirmation(txID); err != nil {
		return txID, err
	}
	return txID, nil
}

func statusResp(animeID string, episode int, snap *reward.Snapshot) *types.RewardStatusResp {
	return &types.RewardStatusResp{
		AnimeID:          animeID,
		Episode:          episode,
		State:            snap.State,
		WatchedSeconds:   snap.WatchedSeconds,
		ThresholdSeconds: snap.ThresholdSeconds,
		ShowClaim:        snap.ShowClaim,
		TriggerReason:    snap.TriggerReason,
	}
}
