package types

// ProgressReq is a playback tick from the media player. Position and
// Duration are in seconds; Duration is zero until the player has loaded
// media metadata, and no threshold check happens before that.
type ProgressReq struct {
	AnimeID  string  `json:"anime_id"`
	Episode  int     `json:"episode"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration,optional"`
}

// EndedReq signals that playback reached the end of the episode, which is
// an alternate eligibility trigger when the threshold was not crossed.
type EndedReq struct {
	AnimeID string `json:"anime_id"`
	Episode int    `json:"episode"`
}

// RewardStatusReq reads the engine snapshot for one episode.
type RewardStatusReq struct {
	AnimeID string `form:"anime_id"`
	Episode int    `form:"episode"`
}

// RewardStatusResp mirrors the engine state machine:
// watching -> claimable -> (pending_onchain ->) claimed.
type RewardStatusResp struct {
	AnimeID          string  `json:"anime_id"`
	Episode          int     `json:"episode"`
	State            string  `json:"state"`
	WatchedSeconds   float64 `json:"watched_seconds"`
	ThresholdSeconds float64 `json:"threshold_seconds,omitempty"`
	// ShowClaim is the visibility of the claim affordance; it auto-expires
	// after a fixed window while the reward itself stays claimable.
	ShowClaim     bool   `json:"show_claim"`
	TriggerReason string `json:"trigger_reason,omitempty"` // threshold | completion
}

// ClaimReq asks for the reward of one episode to be minted.
type ClaimReq struct {
	AnimeID string `json:"anime_id"`
	Episode int    `json:"episode"`
}

type ClaimResp struct {
	NFTID string `json:"nft_id,omitempty"`
	TxID  string `json:"tx_id,omitempty"`
	// State is claimed when the mint is final, pending_onchain when the
	// backend returned a transaction whose confirmation is still unknown.
	State   string `json:"state"`
	Message string `json:"message"`
}
