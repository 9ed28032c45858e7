package reward

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"otakuverse/internal/config"
	"otakuverse/internal/errs"
	"otakuverse/internal/model"
)

// maxProgressDelta bounds how much watch time a single progress tick may
// add. A jump larger than this is a seek, not playback, and counts nothing.
const maxProgressDelta = 10.0

// Episode state strings reported to clients.
const (
	StateWatching      = "watching"
	StateClaimable     = model.ClaimStateClaimable
	StatePendingOnline = model.ClaimStatePendingOnline
	StateClaimed       = model.ClaimStateClaimed
)

// episodeKey identifies one tracked episode.
type episodeKey struct {
	animeID string
	episode int
}

// episodeState is the in-memory, non-durable side of an episode: the last
// seen playhead, the claim affordance visibility and its hide timer.
// Durable facts (accumulated time, eligibility, claim state) live in the
// watch_sessions table.
type episodeState struct {
	lastPosition float64
	showClaim    bool
	hideTimer    *time.Timer
}

// Engine accumulates watch progress and decides reward eligibility. It is a
// long-lived component: one instance per service, safe for concurrent use.
type Engine struct {
	dao    model.WatchSessionsDao
	logger logx.Logger

	fixedCap    float64
	fraction    float64
	claimWindow time.Duration

	mu       sync.Mutex
	episodes map[episodeKey]*episodeState
	notify   func(animeID string, episode int, reason string)
}

func NewEngine(c config.RewardConf, dao model.WatchSessionsDao) *Engine {
	return &Engine{
		dao:         dao,
		logger:      logx.WithContext(context.Background()),
		fixedCap:    float64(c.FixedCapSeconds),
		fraction:    c.Fraction,
		claimWindow: time.Duration(c.ClaimWindowSeconds) * time.Second,
		episodes:    make(map[episodeKey]*episodeState),
	}
}

// SetNotifyFunc installs the hook fired exactly once per episode when it
// becomes claimable.
func (e *Engine) SetNotifyFunc(fn func(animeID string, episode int, reason string)) {
	e.mu.Lock()
	e.notify = fn
	e.mu.Unlock()
}

// Stop cancels all pending hide timers.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.episodes {
		if st.hideTimer != nil {
			st.hideTimer.Stop()
			st.hideTimer = nil
		}
	}
}

// Threshold returns the eligibility threshold in seconds for a video of the
// given duration: 90% of the duration, capped at 23 minutes. Zero when the
// duration is not yet known.
func (e *Engine) Threshold(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return math.Min(e.fixedCap, duration*e.fraction)
}

// Progress ingests one playback tick and re-evaluates eligibility.
func (e *Engine) Progress(ctx context.Context, animeID string, episode int, position, duration float64) (*Snapshot, error) {
	if animeID == "" || episode <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "anime id and positive episode number are required")
	}
	if position < 0 {
		return nil, errs.New(errs.KindInvalidInput, "position cannot be negative")
	}

	row, err := e.loadOrInit(ctx, animeID, episode)
	if err != nil {
		return nil, err
	}
	if duration > 0 {
		row.DurationSeconds = duration
	}

	key := episodeKey{animeID, episode}
	e.mu.Lock()
	st := e.stateLocked(key)
	delta := position - st.lastPosition
	st.lastPosition = position
	e.mu.Unlock()

	if delta > 0 && delta <= maxProgressDelta {
		row.WatchedSeconds += delta
	}

	e.evaluate(row, "threshold")
	if err := e.persist(ctx, row); err != nil {
		return nil, err
	}
	return e.snapshot(key, row), nil
}

// Ended handles the playback-completed signal: an alternate eligibility
// trigger that fires regardless of accumulated time.
func (e *Engine) Ended(ctx context.Context, animeID string, episode int) (*Snapshot, error) {
	if animeID == "" || episode <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "anime id and positive episode number are required")
	}
	row, err := e.loadOrInit(ctx, animeID, episode)
	if err != nil {
		return nil, err
	}

	e.evaluateEnded(row)
	if err := e.persist(ctx, row); err != nil {
		return nil, err
	}
	return e.snapshot(episodeKey{animeID, episode}, row), nil
}

// Status reports the current episode snapshot without mutating anything.
func (e *Engine) Status(ctx context.Context, animeID string, episode int) (*Snapshot, error) {
	if animeID == "" || episode <= 0 {
		return nil, errs.New(errs.KindInvalidInput, "anime id and positive episode number are required")
	}
	row, err := e.dao.Find(ctx, animeID, episode)
	if err != nil {
		if err == model.ErrNotFound {
			return &Snapshot{State: StateWatching}, nil
		}
		return nil, errs.Wrap(errs.KindStorageUnavailable, "load watch session", err)
	}
	return e.snapshot(episodeKey{animeID, episode}, row), nil
}

// BeginClaim moves a claimable episode into the given claim state. It is
// the engine-level entry to the DAO's atomic guard.
func (e *Engine) BeginClaim(ctx context.Context, animeID string, episode int, state string) error {
	err := e.dao.BeginClaim(ctx, animeID, episode, state)
	switch err {
	case nil:
		return nil
	case model.ErrAlreadyClaimed:
		return errs.Wrap(errs.KindInvalidInput, "reward already claimed for this episode", err)
	case model.ErrNotFound:
		return errs.New(errs.KindInvalidInput, "episode is not claimable")
	default:
		return errs.Wrap(errs.KindStorageUnavailable, "claim reward", err)
	}
}

// RecordMint stores the backend-issued identifiers on the pending claim
// row. The row's state is left alone: issuance evidence must survive even
// when the on-chain leg of the claim fails afterwards.
func (e *Engine) RecordMint(ctx context.Context, animeID string, episode int, txID, nftID string) error {
	if err := e.dao.RecordMint(ctx, animeID, episode, txID, nftID); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "record mint identifiers", err)
	}
	return nil
}

// FinishClaim marks the episode claimed and clears the claim affordance.
func (e *Engine) FinishClaim(ctx context.Context, animeID string, episode int, txID, nftID string) error {
	if err := e.dao.FinishClaim(ctx, animeID, episode, txID, nftID); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "record claim", err)
	}
	e.clearAffordance(episodeKey{animeID, episode})
	return nil
}

// ReleaseClaim returns a failed claim to claimable so the user can retry.
func (e *Engine) ReleaseClaim(ctx context.Context, animeID string, episode int) error {
	if err := e.dao.ReleaseClaim(ctx, animeID, episode); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "release claim", err)
	}
	return nil
}

func (e *Engine) loadOrInit(ctx context.Context, animeID string, episode int) (*model.WatchSessions, error) {
	row, err := e.dao.Find(ctx, animeID, episode)
	if err == nil {
		return row, nil
	}
	if err != model.ErrNotFound {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "load watch session", err)
	}
	return &model.WatchSessions{
		AnimeID:    animeID,
		Episode:    episode,
		ClaimState: model.ClaimStateNone,
	}, nil
}

func (e *Engine) persist(ctx context.Context, row *model.WatchSessions) error {
	if err := e.dao.Upsert(ctx, row); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "save watch session", err)
	}
	return nil
}

// evaluate applies the threshold rule. It does nothing until the duration
// is known, and nothing once the episode is already eligible.
func (e *Engine) evaluate(row *model.WatchSessions, reason string) {
	if row.Eligible || row.DurationSeconds <= 0 {
		return
	}
	threshold := e.Threshold(row.DurationSeconds)
	if row.WatchedSeconds < threshold {
		return
	}
	e.markEligible(row, reason)
}

// evaluateEnded applies the completion trigger. An episode that is already
// eligible keeps its original trigger reason; a claimed one is left alone.
func (e *Engine) evaluateEnded(row *model.WatchSessions) {
	if row.Eligible || row.ClaimState == model.ClaimStateClaimed {
		return
	}
	e.markEligible(row, "completion")
}

func (e *Engine) markEligible(row *model.WatchSessions, reason string) {
	row.Eligible = true
	row.TriggerReason = reason
	if row.ClaimState == model.ClaimStateNone {
		row.ClaimState = model.ClaimStateClaimable
	}
	e.logger.Infof("episode %s/%d became claimable (%s) after %.0fs watched",
		row.AnimeID, row.Episode, reason, row.WatchedSeconds)

	key := episodeKey{row.AnimeID, row.Episode}
	e.mu.Lock()
	st := e.stateLocked(key)
	st.showClaim = true
	if st.hideTimer != nil {
		st.hideTimer.Stop()
	}
	// Visibility only: after the window the button disappears but the
	// claim itself stays available through the status endpoint.
	st.hideTimer = time.AfterFunc(e.claimWindow, func() { e.clearAffordance(key) })
	notify := e.notify
	e.mu.Unlock()

	if notify != nil {
		notify(row.AnimeID, row.Episode, reason)
	}
}

func (e *Engine) clearAffordance(key episodeKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.stateLocked(key)
	st.showClaim = false
	if st.hideTimer != nil {
		st.hideTimer.Stop()
		st.hideTimer = nil
	}
}

func (e *Engine) stateLocked(key episodeKey) *episodeState {
	st, ok := e.episodes[key]
	if !ok {
		st = &episodeState{}
		e.episodes[key] = st
	}
	return st
}

// Snapshot is the externally visible view of one episode.
type Snapshot struct {
	State            string
	WatchedSeconds   float64
	ThresholdSeconds float64
	ShowClaim        bool
	TriggerReason    string
}

func (e *Engine) snapshot(key episodeKey, row *model.WatchSessions) *Snapshot {
	e.mu.Lock()
	show := false
	if st, ok := e.episodes[key]; ok {
		show = st.showClaim
	}
	e.mu.Unlock()

	state := StateWatching
	switch row.ClaimState {
	case model.ClaimStateClaimable:
		state = StateClaimable
	case model.ClaimStatePendingOnline:
		state = StatePendingOnline
	case model.ClaimStateClaimed:
		state = StateClaimed
		show = false
	}
	return &Snapshot{
		State:            state,
		WatchedSeconds:   row.WatchedSeconds,
		ThresholdSeconds: e.Threshold(row.DurationSeconds),
		ShowClaim:        show,
		TriggerReason:    row.TriggerReason,
	}
}

// SessionID formats the engine's per-episode session identifier recorded in
// mint payloads.
func SessionID(animeID string, episode int) string {
	return fmt.Sprintf("%s-ep%d-%d", animeID, episode, time.Now().Unix())
}
