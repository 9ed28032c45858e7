package transaction

import (
	"context"

	sdktxn "github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/zeromicro/go-zero/core/logx"

	"otakuverse/internal/algoutil"
	"otakuverse/internal/errs"
	"otakuverse/internal/svc"
	"otakuverse/internal/types"
)

type TransactionLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewTransactionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *TransactionLogic {
	return &TransactionLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// SendPayment runs the full payment pipeline: validate, build, sign,
// broadcast, confirm. Validation failures are reported before any provider
// or node interaction happens.
func (l *TransactionLogic) SendPayment(req *types.SendPaymentReq) (*types.SendPaymentResp, error) {
	if !algoutil.IsValidAddress(req.ToAddress) {
		return nil, errs.New(errs.KindInvalidInput, "invalid recipient address")
	}
	if req.Amount <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "amount must be positive")
	}
	sender, ok := l.svcCtx.Wallet.ActiveAccount()
	if !ok {
		return nil, errs.New(errs.KindNoSession, "wallet not connected")
	}

	sp, err := l.svcCtx.Node.SuggestedParams(l.ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindNodeRejected, "fetch suggested params", err)
	}

	var note []byte
	if req.Note != "" {
		note = []byte(req.Note)
	}
	txn, err := sdktxn.MakePaymentTxn(sender, req.ToAddress, algoutil.ToMicroAlgos(req.Amount), note, "", sp)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "build payment transaction", err)
	}

	signed, signer, err := l.svcCtx.Wallet.SignTransaction(l.ctx, txn)
	if err != nil {
		return nil, err
	}
	l.Infof("payment signed by %s, broadcasting", algoutil.FormatAddress(signer, 6, 4))

	txID, err := l.svcCtx.Node.SendRawTransaction(l.ctx, signed)
	if err != nil {
		return nil, errs.Wrap(errs.KindNodeRejected, "broadcast transaction", err)
	}

	confirmedRound, err := l.WaitForConfirmation(txID)
	if err != nil {
		return nil, err
	}
	l.Infof("payment %s confirmed in round %d", txID, confirmedRound)

	return &types.SendPaymentResp{
		TxID:           txID,
		ConfirmedRound: confirmedRound,
		Message:        "payment confirmed",
	}, nil
}

// Status reports the current pending/confirmed state of a transaction
// without waiting.
func (l *TransactionLogic) Status(req *types.TransactionStatusReq) (*types.TransactionStatusResp, error) {
	if req.TxID == "" {
		return nil, errs.New(errs.KindInvalidInput, "transaction id is required")
	}
	info, err := l.svcCtx.Node.PendingTransactionInformation(l.ctx, req.TxID)
	if err != nil {
		return nil, errs.Wrap(errs.KindNodeRejected, "query transaction", err)
	}
	return &types.TransactionStatusResp{
		TxID:           req.TxID,
		Confirmed:      info.ConfirmedRound > 0,
		ConfirmedRound: info.ConfirmedRound,
		PoolError:      info.PoolError,
	}, nil
}

// WaitForConfirmation polls the pending pool round by round until the
// transaction confirms, the node reports a pool error, or the round budget
// runs out. A transient query error does not abort the wait; the round
// budget bounds it regardless.
func (l *TransactionLogic) WaitForConfirmation(txID string) (uint64, error) {
	maxRounds := uint64(l.svcCtx.Config.Txn.MaxConfirmRounds)
	start, err := l.svcCtx.Node.LastRound(l.ctx)
	if err != nil {
		return 0, errs.Wrap(errs.KindNodeRejected, "fetch node status", err)
	}

	for current := start; current < start+maxRounds; current++ {
		info, err := l.svcCtx.Node.PendingTransactionInformation(l.ctx, txID)
		if err != nil {
			l.Errorf("pending lookup for %s failed, retrying next round: %v", txID, err)
		} else {
			if info.ConfirmedRound > 0 {
				return info.ConfirmedRound, nil
			}
			if info.PoolError != "" {
				return 0, errs.Newf(errs.KindNodeRejected, "transaction rejected by node: %s", info.PoolError)
			}
		}
		if err := l.svcCtx.Node.WaitAfterBlock(l.ctx, current+1); err != nil {
			return 0, errs.Wrap(errs.KindNodeRejected, "wait for round", err)
		}
	}
	return 0, errs.Newf(errs.KindConfirmationTimeout,
		"transaction %s not confirmed within %d rounds", txID, maxRounds)
}
