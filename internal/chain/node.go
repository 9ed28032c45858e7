package chain

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// PendingInfo is the subset of the node's pending-transaction response the
// pipeline needs: a positive ConfirmedRound means the transaction landed,
// a non-empty PoolError means the node dropped it.
type PendingInfo struct {
	ConfirmedRound uint64
	PoolError      string
}

// AccountInfo carries balances in integer base units (microAlgos).
type AccountInfo struct {
	Address    string
	Amount     uint64
	MinBalance uint64
	AssetCount int
}

// NodeClient is the node query capability. The service injects an algod
// implementation in production and a fake in tests; the pipeline and the
// session manager only ever see this interface.
type NodeClient interface {
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	SendRawTransaction(ctx context.Context, signed []byte) (string, error)
	PendingTransactionInformation(ctx context.Context, txID string) (PendingInfo, error)
	// LastRound reports the node's current round.
	LastRound(ctx context.Context) (uint64, error)
	// WaitAfterBlock returns once the node has seen the given round.
	WaitAfterBlock(ctx context.Context, round uint64) error
	AccountInformation(ctx context.Context, address string) (AccountInfo, error)
}
