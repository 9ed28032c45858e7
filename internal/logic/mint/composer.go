package mint

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"otakuverse/internal/algoutil"
	"otakuverse/internal/errs"
	"otakuverse/internal/types"
)

const (
	// Platform and PayloadVersion identify the payload schema to the
	// minting backend.
	Platform       = "OtakuVerse"
	PayloadVersion = "2.0"

	ipfsGateway = "https://ipfs.io/ipfs/"
	// fallbackCID is the pinned placeholder artwork used when a collection
	// entry carries no image of its own.
	fallbackCID = "QmRj2WryQAiNKEhsjP8tUqfBC4KhEJhrtKezKGcYm4J9uK"

	maxAttributes = 15
)

// Trigger types recorded in the minting context.
const (
	TriggerWatchCompletion = "watch_completion"
	TriggerEpisodeFinish   = "episode_finish"
)

// ComposeInput carries everything the composer needs to assemble one mint
// payload. Payloads are assembled fresh per claim and never reused.
type ComposeInput struct {
	UserWallet      string
	Anime           *types.AnimeMetadata
	Episode         int
	WatchedSeconds  float64
	DurationSeconds float64
	TriggerReason   string // threshold | completion
	SessionID       string
	Now             time.Time
}

// Composer assembles mint payloads from catalog metadata and watch state.
// It is pure: no I/O, fully deterministic given the input.
type Composer struct{}

func NewComposer() *Composer { return &Composer{} }

func (c *Composer) Compose(in ComposeInput) (*types.MintPayload, error) {
	if !algoutil.IsValidAddress(in.UserWallet) {
		return nil, errs.New(errs.KindInvalidInput, "invalid wallet address")
	}
	if in.Anime == nil || in.Anime.ID == "" {
		return nil, errs.New(errs.KindInvalidInput, "anime metadata is required")
	}
	if in.Episode <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "episode number must be positive")
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	entry := pickCollectionEntry(in.Anime, in.Episode)
	image := normalizeImageURL(entry.Image)
	cid := extractCID(entry)
	watchTime := int(in.WatchedSeconds)

	meta := types.NFTMetadata{
		ID:          entry.ID,
		Name:        entry.Name,
		Description: describe(entry, in.Anime, in.Episode, in.WatchedSeconds),
		Image:       image,
		Anime:       in.Anime.Title,
		AnimeID:     in.Anime.ID,
		Episode:     in.Episode,
		WatchTime:   watchTime,
		Rarity:      entry.Rarity,
		IsListed:    entry.IsListed,
		Price:       entry.Price,
		Attributes:  enhanceAttributes(entry, in),
		IPFS: &types.IPFSMetadata{
			Cid:         cid,
			GatewayURL:  ipfsGateway + cid,
			Pinned:      entry.IPFSCid != "",
			MetadataURL: entry.MetadataURL,
		},
		Creator:  normalizeCreator(in.Anime.Creator),
		MintedAt: in.Now.UTC().Format(time.RFC3339),
		MintedBy: in.UserWallet,
	}

	return &types.MintPayload{
		UserWallet:  in.UserWallet,
		AnimeID:     in.Anime.ID,
		EpisodeID:   fmt.Sprintf("%s-ep%d", in.Anime.ID, in.Episode),
		WatchTime:   watchTime,
		NFTMetadata: meta,
		Platform:    Platform,
		Version:     PayloadVersion,
		Timestamp:   in.Now.UTC().Format(time.RFC3339),
		MintingContext: types.MintingContext{
			TriggerType:     triggerType(in.TriggerReason),
			ActualWatchTime: watchTime,
			VideoProgress:   videoProgress(in.WatchedSeconds, in.DurationSeconds),
			SessionID:       in.SessionID,
		},
	}, nil
}

// pickCollectionEntry resolves the reward artwork: the collection entry
// published for this episode, else the collection's first entry, else a
// synthesized placeholder.
func pickCollectionEntry(anime *types.AnimeMetadata, episode int) types.CollectionNFT {
	for _, nft := range anime.NFTCollection {
		if nft.Episode == episode {
			return nft
		}
	}
	if len(anime.NFTCollection) > 0 {
		return anime.NFTCollection[0]
	}
	return types.CollectionNFT{
		ID:      "nft-" + uuid.NewString(),
		Name:    fmt.Sprintf("%s - Episode %d Reward", anime.Title, episode),
		Image:   ipfsGateway + fallbackCID,
		Episode: episode,
		Rarity:  "common",
	}
}

// normalizeImageURL maps the various image notations the catalog stores
// (ipfs:// URIs, bare CIDs, gateway URLs) onto one gateway URL.
func normalizeImageURL(image string) string {
	switch {
	case image == "":
		return ipfsGateway + fallbackCID
	case strings.HasPrefix(image, "ipfs://"):
		return ipfsGateway + strings.TrimPrefix(image, "ipfs://")
	case looksLikeCID(image):
		return ipfsGateway + image
	default:
		return image
	}
}

func extractCID(entry types.CollectionNFT) string {
	if entry.IPFSCid != "" {
		return entry.IPFSCid
	}
	image := entry.Image
	if strings.HasPrefix(image, "ipfs://") {
		return strings.TrimPrefix(image, "ipfs://")
	}
	if i := strings.Index(image, "/ipfs/"); i >= 0 {
		cid := image[i+len("/ipfs/"):]
		if j := strings.IndexByte(cid, '?'); j >= 0 {
			cid = cid[:j]
		}
		if cid != "" {
			return cid
		}
	}
	if looksLikeCID(image) {
		return image
	}
	return fallbackCID
}

func looksLikeCID(s string) bool {
	if strings.ContainsAny(s, "/:") {
		return false
	}
	return (strings.HasPrefix(s, "Qm") && len(s) == 46) || strings.HasPrefix(s, "bafy")
}

func describe(entry types.CollectionNFT, anime *types.AnimeMetadata, episode int, watchedSeconds float64) string {
	if entry.Description != "" {
		return entry.Description
	}
	return fmt.Sprintf("Reward for watching %d minutes of %s Episode %d on %s.",
		int(watchedSeconds)/60, anime.Title, episode, Platform)
}

// enhanceAttributes merges the entry's own traits with the standard watch
// provenance traits, deduplicated by trait type (first wins) and capped.
func enhanceAttributes(entry types.CollectionNFT, in ComposeInput) []types.Attribute {
	standard := []types.Attribute{
		{TraitType: "Anime", Value: in.Anime.Title},
		{TraitType: "Episode", Value: in.Episode},
		{TraitType: "Rarity", Value: entry.Rarity},
		{TraitType: "Watch Time", Value: int(in.WatchedSeconds)},
		{TraitType: "Progress", Value: videoProgress(in.WatchedSeconds, in.DurationSeconds)},
		{TraitType: "Trigger", Value: triggerType(in.TriggerReason)},
		{TraitType: "Platform", Value: Platform},
	}

	seen := make(map[string]bool)
	var out []types.Attribute
	for _, attr := range append(append([]types.Attribute{}, entry.Attributes...), standard...) {
		key := strings.ToLower(strings.TrimSpace(attr.TraitType))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, attr)
		if len(out) == maxAttributes {
			break
		}
	}
	return out
}

func normalizeCreator(c types.Creator) types.Creator {
	if c.ID == "" {
		c.ID = "unknown"
	}
	if c.Username == "" {
		c.Username = "Unknown Creator"
	}
	return c
}

func triggerType(reason string) string {
	if reason == "completion" {
		return TriggerEpisodeFinish
	}
	return TriggerWatchCompletion
}

func videoProgress(watched, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	p := watched / duration * 100
	if p > 100 {
		p = 100
	}
	return p
}
