package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"otakuverse/internal/algoutil"
	"otakuverse/internal/errs"
	"otakuverse/internal/logic/wallet"
	"otakuverse/internal/svc"
	"otakuverse/internal/types"
)

type WalletLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewWalletLogic(ctx context.Context, svcCtx *svc.ServiceContext) *WalletLogic {
	return &WalletLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

func (l *WalletLogic) Connect() (*types.ConnectResp, error) {
	accounts, err := l.svcCtx.Wallet.Connect(l.ctx)
	if err != nil {
		return nil, err
	}
	return &types.ConnectResp{
		Accounts:      accounts,
		ActiveAccount: accounts[0],
		Message:       "wallet connected",
	}, nil
}

func (l *WalletLogic) Disconnect() (*types.DisconnectResp, error) {
	l.svcCtx.Wallet.Disconnect(l.ctx)
	return &types.DisconnectResp{Message: "wallet disconnected"}, nil
}

func (l *WalletLogic) Status() (*types.WalletStatusResp, error) {
	snap := l.svcCtx.Wallet.Snapshot()
	return &types.WalletStatusResp{
		Phase:             snap.Phase.String(),
		Accounts:          snap.Accounts,
		ActiveAccount:     snap.ActiveAccount,
		Balance:           algoutil.ToAlgos(snap.Balance),
		BalanceMicroAlgos: snap.Balance,
		LastError:         snap.LastError,
	}, nil
}

func (l *WalletLogic) Balance(req *types.BalanceReq) (*types.BalanceResp, error) {
	snap := l.svcCtx.Wallet.Snapshot()
	if snap.Phase != wallet.PhaseConnected {
		return nil, errs.New(errs.KindNoSession, "wallet not connected")
	}

	amount := snap.Balance
	if req.Refresh {
		refreshed, err := l.svcCtx.Wallet.RefreshBalance(l.ctx)
		if err != nil {
			return nil, err
		}
		amount = refreshed
	}
	return &types.BalanceResp{
		Address:           snap.ActiveAccount,
		Balance:           algoutil.ToAlgos(amount),
		BalanceMicroAlgos: amount,
	}, nil
}
