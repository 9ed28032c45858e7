package types

// ConnectResp is returned by /wallet/connect once the provider has handed
// back at least one account.
type ConnectResp struct {
	Accounts      []string `json:"accounts"`
	ActiveAccount string   `json:"active_account"`
	Message       string   `json:"message"`
}

// DisconnectResp acknowledges a disconnect. Local teardown is unconditional,
// so this call never fails from the caller's perspective.
type DisconnectResp struct {
	Message string `json:"message"`
}

// WalletStatusResp is a snapshot of the session state.
type WalletStatusResp struct {
	Phase         string   `json:"phase"` // disconnected | connecting | connected
	Accounts      []string `json:"accounts"`
	ActiveAccount string   `json:"active_account,omitempty"`
	// Balance is in display units (Algos); BalanceMicroAlgos carries the
	// exact integer base-unit value.
	Balance           float64 `json:"balance"`
	BalanceMicroAlgos uint64  `json:"balance_microalgos"`
	LastError         string  `json:"last_error,omitempty"`
}

// BalanceReq optionally forces a fresh node query instead of the cached
// value maintained by balance monitoring.
type BalanceReq struct {
	Refresh bool `form:"refresh,optional"`
}

type BalanceResp struct {
	Address           string  `json:"address"`
	Balance           float64 `json:"balance"`
	BalanceMicroAlgos uint64  `json:"balance_microalgos"`
}
