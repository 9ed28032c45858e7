package types

// Attribute is a single display trait attached to a minted reward.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Creator is the publisher attribution carried on a mint request. The
// wallet address is optional; not every creator has linked one.
type Creator struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// CollectionNFT is one entry of an anime's published reward collection,
// as served by the catalog.
type CollectionNFT struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image"`
	Episode     int         `json:"episode"`
	WatchTime   int         `json:"watchTime,omitempty"`
	Rarity      string      `json:"rarity"`
	IsListed    bool        `json:"isListed"`
	Price       float64     `json:"price,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
	IPFSCid     string      `json:"ipfs_cid,omitempty"`
	MetadataURL string      `json:"metadata_url,omitempty"`
}

// AnimeMetadata is the catalog record the composer merges into a mint
// request: series metadata, the published collection and the creator.
type AnimeMetadata struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Episodes      int             `json:"episodes"`
	Thumbnail     string          `json:"thumbnail"`
	Status        string          `json:"status"`
	NFTCollection []CollectionNFT `json:"nftCollection,omitempty"`
	Creator       Creator         `json:"creator"`
	Genres        []string        `json:"genres,omitempty"`
	Views         int             `json:"views,omitempty"`
	Likes         int             `json:"likes,omitempty"`
}

// IPFSMetadata records where the reward image and metadata are pinned.
type IPFSMetadata struct {
	Cid         string `json:"cid,omitempty"`
	GatewayURL  string `json:"gateway_url"`
	Pinned      bool   `json:"pinned"`
	MetadataURL string `json:"metadata_url,omitempty"`
}

// NFTMetadata is the reward record inside a mint payload.
type NFTMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`

	Anime     string `json:"anime"`
	AnimeID   string `json:"animeId"`
	Episode   int    `json:"episode"`
	WatchTime int    `json:"watchTime"`
	Rarity    string `json:"rarity"`

	IsListed bool    `json:"isListed"`
	Price    float64 `json:"price,omitempty"`

	Attributes []Attribute   `json:"attributes"`
	IPFS       *IPFSMetadata `json:"ipfs_metadata,omitempty"`

	Creator Creator `json:"creator"`

	MintedAt string `json:"mintedAt"`
	MintedBy string `json:"mintedBy"`
}

// MintingContext is the provenance block: why the mint triggered and how
// much of the episode was actually watched.
type MintingContext struct {
	TriggerType     string  `json:"triggerType"` // watch_completion | episode_finish
	ActualWatchTime int     `json:"actualWatchTime"`
	VideoProgress   float64 `json:"videoProgress"`
	SessionID       string  `json:"sessionId"`
}

// MintPayload is the normalized reward-issuance request sent to the minting
// backend. It is assembled fresh for every send; a failed call is never
// retried with the same object.
type MintPayload struct {
	UserWallet string `json:"userWallet"`
	AnimeID    string `json:"animeId"`
	EpisodeID  string `json:"episodeId"`
	WatchTime  int    `json:"watchTime"`

	NFTMetadata NFTMetadata `json:"nftMetadata"`

	Platform  string `json:"platform"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`

	MintingContext MintingContext `json:"mintingContext"`
}

// MintResult is the minting backend's response. UnsignedTransaction, when
// present, must be signed and confirmed on-chain before the mint is final.
type MintResult struct {
	Success             bool   `json:"success"`
	TransactionID       string `json:"transactionId,omitempty"`
	NFTID               string `json:"nftId,omitempty"`
	UnsignedTransaction string `json:"unsignedTransaction,omitempty"`
	Error               string `json:"error,omitempty"`
}
