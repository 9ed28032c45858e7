package types

// SendPaymentReq drives the full pipeline: build, sign, broadcast, confirm.
// Amount is in display units (Algos); the pipeline converts to microAlgos.
type SendPaymentReq struct {
	ToAddress string  `json:"to_address"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note,optional"`
}

type SendPaymentResp struct {
	TxID           string `json:"tx_id"`
	ConfirmedRound uint64 `json:"confirmed_round"`
	Message        string `json:"message"`
}

// TransactionStatusReq looks up a previously broadcast transaction.
type TransactionStatusReq struct {
	TxID string `path:"txid"`
}

type TransactionStatusResp struct {
	TxID           string `json:"tx_id"`
	Confirmed      bool   `json:"confirmed"`
	ConfirmedRound uint64 `json:"confirmed_round,omitempty"`
	PoolError      string `json:"pool_error,omitempty"`
}
