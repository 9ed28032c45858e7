package mint

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otakuverse/internal/errs"
	"otakuverse/internal/types"
)

const testWallet = "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A"

func baseInput() ComposeInput {
	return ComposeInput{
		UserWallet: testWallet,
		Anime: &types.AnimeMetadata{
			ID:    "anime-1",
			Title: "Cowboy Bebop",
			Creator: types.Creator{
				ID:       "creator-1",
				Username: "sunrise",
			},
		},
		Episode:         5,
		WatchedSeconds:  1200.7,
		DurationSeconds: 1440,
		TriggerReason:   "threshold",
		SessionID:       "anime-1-ep5-1700000000",
		Now:             time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}
}

func TestComposeEnvelope(t *testing.T) {
	c := NewComposer()
	payload, err := c.Compose(baseInput())
	require.NoError(t, err)

	assert.Equal(t, "OtakuVerse", payload.Platform)
	assert.Equal(t, "2.0", payload.Version)
	assert.Equal(t, testWallet, payload.UserWallet)
	assert.Equal(t, "anime-1", payload.AnimeID)
	assert.Equal(t, "anime-1-ep5", payload.EpisodeID)
	assert.Equal(t, 1200, payload.WatchTime)
	assert.Equal(t, "2026-08-28T12:00:00Z", payload.Timestamp)

	assert.Equal(t, TriggerWatchCompletion, payload.MintingContext.TriggerType)
	assert.Equal(t, 1200, payload.MintingContext.ActualWatchTime)
	assert.InDelta(t, 83.38, payload.MintingContext.VideoProgress, 0.01)
	assert.Equal(t, "anime-1-ep5-1700000000", payload.MintingContext.SessionID)

	assert.Equal(t, testWallet, payload.NFTMetadata.MintedBy)
	assert.Equal(t, "2026-08-28T12:00:00Z", payload.NFTMetadata.MintedAt)
}

func TestComposePicksEpisodeEntry(t *testing.T) {
	in := baseInput()
	in.Anime.NFTCollection = []types.CollectionNFT{
		{ID: "nft-a", Name: "Episode 1 Card", Episode: 1, Rarity: "rare", Image: "ipfs://QmAAA"},
		{ID: "nft-b", Name: "Episode 5 Card", Episode: 5, Rarity: "legendary", Image: "ipfs://QmBBB"},
	}

	payload, err := NewComposer().Compose(in)
	require.NoError(t, err)
	assert.Equal(t, "nft-b", payload.NFTMetadata.ID)
	assert.Equal(t, "legendary", payload.NFTMetadata.Rarity)
	assert.Equal(t, "https://ipfs.io/ipfs/QmBBB", payload.NFTMetadata.Image)
}

func TestComposeFallsBackToFirstEntry(t *testing.T) {
	in := baseInput()
	in.Anime.NFTCollection = []types.CollectionNFT{
		{ID: "nft-a", Name: "Episode 1 Card", Episode: 1, Rarity: "rare"},
	}

	payload, err := NewComposer().Compose(in)
	require.NoError(t, err)
	assert.Equal(t, "nft-a", payload.NFTMetadata.ID)
}

func TestComposeSynthesizesWhenCollectionEmpty(t *testing.T) {
	payload, err := NewComposer().Compose(baseInput())
	require.NoError(t, err)

	meta := payload.NFTMetadata
	assert.True(t, strings.HasPrefix(meta.ID, "nft-"))
	assert.Equal(t, "Cowboy Bebop - Episode 5 Reward", meta.Name)
	assert.Equal(t, "common", meta.Rarity)
	assert.Equal(t, "https://ipfs.io/ipfs/"+fallbackCID, meta.Image)
	require.NotNil(t, meta.IPFS)
	assert.Equal(t, fallbackCID, meta.IPFS.Cid)
	assert.False(t, meta.IPFS.Pinned)
	assert.Contains(t, meta.Description, "Cowboy Bebop")
}

func TestImageURLNormalization(t *testing.T) {
	cid46 := "Qm" + strings.Repeat("a", 44)
	tests := []struct {
		in   string
		want string
	}{
		{"", ipfsGateway + fallbackCID},
		{"ipfs://QmXYZ", ipfsGateway + "QmXYZ"},
		{cid46, ipfsGateway + cid46},
		{"bafybeigdyrzt5example", ipfsGateway + "bafybeigdyrzt5example"},
		{"https://example.com/art.png", "https://example.com/art.png"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, normalizeImageURL(tc.in), "image %q", tc.in)
	}
}

func TestExtractCID(t *testing.T) {
	assert.Equal(t, "QmPinned", extractCID(types.CollectionNFT{IPFSCid: "QmPinned", Image: "ipfs://QmOther"}))
	assert.Equal(t, "QmOther", extractCID(types.CollectionNFT{Image: "ipfs://QmOther"}))
	assert.Equal(t, "QmGate", extractCID(types.CollectionNFT{Image: "https://ipfs.io/ipfs/QmGate?filename=a.png"}))
	assert.Equal(t, fallbackCID, extractCID(types.CollectionNFT{Image: "https://example.com/a.png"}))
}

func TestAttributesDedupedAndCapped(t *testing.T) {
	in := baseInput()
	var attrs []types.Attribute
	for i := 0; i < 12; i++ {
		attrs = append(attrs, types.Attribute{TraitType: strings.Repeat("t", i+1), Value: i})
	}
	// Entry-level traits win over the standard ones with the same type.
	attrs = append(attrs, types.Attribute{TraitType: "Rarity", Value: "mythic"})
	in.Anime.NFTCollection = []types.CollectionNFT{{
		ID: "nft-x", Name: "X", Episode: 5, Rarity: "rare", Attributes: attrs,
	}}

	payload, err := NewComposer().Compose(in)
	require.NoError(t, err)

	got := payload.NFTMetadata.Attributes
	assert.Len(t, got, maxAttributes)

	seen := map[string]int{}
	for _, a := range got {
		seen[strings.ToLower(a.TraitType)]++
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "duplicate trait %s", k)
	}
	assert.Equal(t, "mythic", findAttr(t, got, "Rarity"))
}

func findAttr(t *testing.T, attrs []types.Attribute, traitType string) any {
	t.Helper()
	for _, a := range attrs {
		if strings.EqualFold(a.TraitType, traitType) {
			return a.Value
		}
	}
	t.Fatalf("trait %s not found", traitType)
	return nil
}

func TestCreatorFallbacks(t *testing.T) {
	in := baseInput()
	in.Anime.Creator = types.Creator{}

	payload, err := NewComposer().Compose(in)
	require.NoError(t, err)
	assert.Equal(t, "unknown", payload.NFTMetadata.Creator.ID)
	assert.Equal(t, "Unknown Creator", payload.NFTMetadata.Creator.Username)
}

func TestTriggerTypeMapping(t *testing.T) {
	in := baseInput()
	in.TriggerReason = "completion"
	payload, err := NewComposer().Compose(in)
	require.NoError(t, err)
	assert.Equal(t, TriggerEpisodeFinish, payload.MintingContext.TriggerType)
}

func TestVideoProgressCappedAt100(t *testing.T) {
	in := baseInput()
	in.WatchedSeconds = 2000
	in.DurationSeconds = 1440
	payload, err := NewComposer().Compose(in)
	require.NoError(t, err)
	assert.Equal(t, float64(100), payload.MintingContext.VideoProgress)

	in.DurationSeconds = 0
	payload, err = NewComposer().Compose(in)
	require.NoError(t, err)
	assert.Zero(t, payload.MintingContext.VideoProgress)
}

func TestComposeValidation(t *testing.T) {
	c := NewComposer()

	in := baseInput()
	in.UserWallet = "not-an-address"
	_, err := c.Compose(in)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))

	in = baseInput()
	in.Anime = nil
	_, err = c.Compose(in)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))

	in = baseInput()
	in.Episode = 0
	_, err = c.Compose(in)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}
