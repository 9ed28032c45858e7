package chain

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"otakuverse/internal/config"
)

// algodNode implements NodeClient over the algod REST API.
type algodNode struct {
	client *algod.Client
}

// NewAlgodNode connects to the configured Algorand node.
func NewAlgodNode(c config.AlgodConf) (NodeClient, error) {
	client, err := algod.MakeClient(c.Server, c.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}
	return &algodNode{client: client}, nil
}

func (n *algodNode) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	return n.client.SuggestedParams().Do(ctx)
}

func (n *algodNode) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	return n.client.SendRawTransaction(signed).Do(ctx)
}

func (n *algodNode) PendingTransactionInformation(ctx context.Context, txID string) (PendingInfo, error) {
	info, _, err := n.client.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		return PendingInfo{}, err
	}
	return PendingInfo{
		ConfirmedRound: info.ConfirmedRound,
		PoolError:      info.PoolError,
	}, nil
}

func (n *algodNode) LastRound(ctx context.Context) (uint64, error) {
	status, err := n.client.Status().Do(ctx)
	if err != nil {
		return 0, err
	}
	return status.LastRound, nil
}

func (n *algodNode) WaitAfterBlock(ctx context.Context, round uint64) error {
	_, err := n.client.StatusAfterBlock(round).Do(ctx)
	return err
}

func (n *algodNode) AccountInformation(ctx context.Context, address string) (AccountInfo, error) {
	acct, err := n.client.AccountInformation(address).Do(ctx)
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{
		Address:    acct.Address,
		Amount:     acct.Amount,
		MinBalance: acct.MinBalance,
		AssetCount: len(acct.Assets),
	}, nil
}
