package config

import "github.com/zeromicro/go-zero/rest"

// AlgodConf points at the Algorand node used for transaction params,
// broadcast and confirmation polling.
type AlgodConf struct {
	Server string
	Token  string `json:",optional"`
}

// WalletBridgeConf configures the external wallet provider bridge. The
// bridge owns the actual wallet-connect handshake; this service only calls
// its capability surface.
type WalletBridgeConf struct {
	URL            string
	TimeoutSeconds int `json:",default=30"`
}

// MintConf points at the reward-issuance backend.
type MintConf struct {
	Endpoint       string
	TimeoutSeconds int `json:",default=30"`
}

// CatalogConf points at the read-only anime catalog service.
type CatalogConf struct {
	URL            string
	TimeoutSeconds int `json:",default=10"`
	MaxRetries     int `json:",default=2"`
}

// RewardConf holds the eligibility-engine constants. The threshold is
// min(FixedCapSeconds, duration * Fraction) so short episodes stay
// rewardable and long ones do not demand an excessive wait.
type RewardConf struct {
	FixedCapSeconds    int     `json:",default=1380"`
	Fraction           float64 `json:",default=0.9"`
	ClaimWindowSeconds int     `json:",default=30"`
}

// WalletConf tunes the session manager.
type WalletConf struct {
	BalanceIntervalSeconds int `json:",default=30"`
	MaxReconnectAttempts   int `json:",default=3"`
	// ReconnectBaseDelayMs is the first backoff delay; each later attempt
	// doubles it. Lowered in tests.
	ReconnectBaseDelayMs int `json:",default=2000"`
}

// TxnConf tunes the transaction pipeline.
type TxnConf struct {
	MaxConfirmRounds uint64 `json:",default=10"`
}

type Config struct {
	rest.RestConf
	Storage struct {
		// Driver selects the gorm backend: "sqlite" for a local file,
		// "postgres" when a server DSN is configured.
		Driver string `json:",default=sqlite,options=sqlite|postgres"`
		DSN    string `json:",default=otakuverse.db"`
	}
	Algod        AlgodConf
	WalletBridge WalletBridgeConf
	Mint         MintConf
	Catalog      CatalogConf
	Reward       RewardConf
	Wallet       WalletConf
	Txn          TxnConf
}
