package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/zeromicro/go-zero/core/logx"

	"otakuverse/internal/algoutil"
	"otakuverse/internal/chain"
	"otakuverse/internal/config"
	"otakuverse/internal/errs"
	"otakuverse/internal/model"
	"otakuverse/internal/provider"
)

// Phase is the externally visible connection state.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session is the single shared mutable resource of the manager. Callers
// only ever see copies; all mutation happens inside the manager in response
// to its own continuations or provider push events.
type Session struct {
	Phase         Phase
	Accounts      []string
	ActiveAccount string
	// Balance is in microAlgos.
	Balance   uint64
	LastError string
}

// Manager owns the wallet session lifecycle: connect/reconnect/disconnect,
// account-change handling, balance monitoring, and event fan-out.
type Manager struct {
	provider provider.Provider
	node     chain.NodeClient
	dao      model.SessionsDao
	logger   logx.Logger

	mu          sync.Mutex
	session     Session
	signPending map[string]bool
	subs        map[int]chan Event
	nextSubID   int
	balanceStop chan struct{}

	balanceInterval      time.Duration
	maxReconnectAttempts int
	reconnectBaseDelay   time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager wires the manager. Call Start to begin consuming provider
// notifications and to attempt a silent session resume.
func NewManager(c config.WalletConf, p provider.Provider, node chain.NodeClient, dao model.SessionsDao) *Manager {
	return &Manager{
		provider:             p,
		node:                 node,
		dao:                  dao,
		logger:               logx.WithContext(context.Background()),
		session:              Session{Phase: PhaseDisconnected},
		signPending:          make(map[string]bool),
		subs:                 make(map[int]chan Event),
		balanceInterval:      time.Duration(c.BalanceIntervalSeconds) * time.Second,
		maxReconnectAttempts: c.MaxReconnectAttempts,
		reconnectBaseDelay:   time.Duration(c.ReconnectBaseDelayMs) * time.Millisecond,
		stop:                 make(chan struct{}),
	}
}

// Start launches the notification consumer and, when a previous session was
// persisted, a background silent reconnect.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.consumeNotifications()

	if _, err := m.dao.Load(context.Background()); err == nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if _, err := m.Reconnect(context.Background()); err != nil {
				m.logger.Infof("silent session resume failed: %v", err)
			}
		}()
	}
}

// Stop tears the manager down: notification consumer, balance monitor and
// any in-flight reconnect backoff stop firing after this returns.
func (m *Manager) Stop() {
	close(m.stop)
	m.mu.Lock()
	m.stopBalanceMonitorLocked()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.mu.Unlock()
	m.provider.Close()
	m.wg.Wait()
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.session
	snap.Accounts = append([]string(nil), m.session.Accounts...)
	return snap
}

// ActiveAccount returns the connected account, if any.
func (m *Manager) ActiveAccount() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Phase != PhaseConnected || m.session.ActiveAccount == "" {
		return "", false
	}
	return m.session.ActiveAccount, true
}

// Connect opens a new wallet session. Valid only from the disconnected
// phase; a concurrent attempt is rejected rather than queued.
func (m *Manager) Connect(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	switch m.session.Phase {
	case PhaseConnecting:
		m.mu.Unlock()
		return nil, errs.New(errs.KindProviderBusy, "a connection attempt is already in progress")
	case PhaseConnected:
		m.mu.Unlock()
		return nil, errs.New(errs.KindInvalidInput, "wallet is already connected")
	}
	m.session.Phase = PhaseConnecting
	m.session.LastError = ""
	m.mu.Unlock()

	accounts, err := m.provider.Connect(ctx)
	if err == nil && len(accounts) == 0 {
		err = errs.New(errs.KindNoSession, "no accounts found in wallet")
	}
	if err != nil {
		m.recordFailure(err)
		return nil, err
	}

	m.handleSuccessfulConnection(ctx, accounts)
	m.logger.Infof("wallet connected, active account %s", algoutil.FormatAddress(accounts[0], 6, 4))
	return accounts, nil
}

// Reconnect resumes a persisted session without user interaction. Failed
// attempts back off at 2s, 4s, 8s (scaled by config) and give up after the
// configured attempt cap; a success resets the counter for the next time.
func (m *Manager) Reconnect(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	if m.session.Phase == PhaseConnecting {
		m.mu.Unlock()
		return nil, errs.New(errs.KindProviderBusy, "a connection attempt is already in progress")
	}
	if m.session.Phase == PhaseConnected {
		m.mu.Unlock()
		return nil, errs.New(errs.KindInvalidInput, "wallet is already connected")
	}
	m.session.Phase = PhaseConnecting
	m.session.LastError = ""
	m.mu.Unlock()

	attempt := 0
	policy := retrypolicy.NewBuilder[[]string]().
		WithBackoff(m.reconnectBaseDelay, m.reconnectBaseDelay*4).
		WithMaxRetries(m.maxReconnectAttempts).
		Build()

	accounts, err := failsafe.With(policy).WithContext(ctx).Get(func() ([]string, error) {
		attempt++
		select {
		case <-m.stop:
			return nil, errs.New(errs.KindNoSession, "manager stopped during reconnect")
		default:
		}
		m.logger.Infof("reconnect attempt %d", attempt)
		accts, err := m.provider.ReconnectSession(ctx)
		if err != nil {
			return nil, err
		}
		if len(accts) == 0 {
			return nil, errs.New(errs.KindNoSession, "no previous session found")
		}
		return accts, nil
	})
	if err != nil {
		// Beyond the retry cap the caller degrades to manual reconnect.
		m.recordFailure(err)
		return nil, err
	}

	m.handleSuccessfulConnection(ctx, accounts)
	m.logger.Infof("wallet session resumed after %d attempt(s)", attempt)
	return accounts, nil
}

// Disconnect tears the session down. Provider teardown and storage clear
// are best effort; the local reset is unconditional and the call always
// succeeds from the caller's perspective.
func (m *Manager) Disconnect(ctx context.Context) {
	if err := m.provider.Disconnect(ctx); err != nil {
		m.logger.Errorf("provider disconnect failed (continuing): %v", err)
	}
	m.resetSession(ctx)
	m.logger.Info("wallet disconnected")
}

// RefreshBalance forces a node query for the active account and updates the
// cached balance, emitting an event when the value changed.
func (m *Manager) RefreshBalance(ctx context.Context) (uint64, error) {
	account, ok := m.ActiveAccount()
	if !ok {
		return 0, errs.New(errs.KindNoSession, "wallet not connected")
	}
	info, err := m.node.AccountInformation(ctx, account)
	if err != nil {
		return 0, err
	}
	m.applyBalance(account, info.Amount)
	return info.Amount, nil
}

// SignTransaction asks the wallet to sign an unsigned transaction with the
// active account. Only one signature request per account may be in flight;
// a second one is rejected without contacting the provider.
func (m *Manager) SignTransaction(ctx context.Context, txn types.Transaction) ([]byte, string, error) {
	m.mu.Lock()
	if m.session.Phase != PhaseConnected || m.session.ActiveAccount == "" {
		m.mu.Unlock()
		return nil, "", errs.New(errs.KindNoSession, "wallet not connected")
	}
	signer := m.session.ActiveAccount
	if m.signPending[signer] {
		m.mu.Unlock()
		return nil, "", errs.New(errs.KindProviderBusy, "a signature request is already pending for this account")
	}
	m.signPending[signer] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.signPending, signer)
		m.mu.Unlock()
	}()

	blob, err := m.provider.SignTransaction(ctx, algoutil.EncodeTransaction(txn), signer)
	if err != nil {
		m.emit(Event{Kind: EventError, Err: err})
		return nil, "", err
	}
	return blob, signer, nil
}

// handleSuccessfulConnection installs the account list, persists the
// session and starts balance monitoring.
func (m *Manager) handleSuccessfulConnection(ctx context.Context, accounts []string) {
	m.mu.Lock()
	m.session.Phase = PhaseConnected
	m.session.Accounts = append([]string(nil), accounts...)
	m.session.ActiveAccount = accounts[0]
	m.session.LastError = ""
	m.startBalanceMonitorLocked()
	m.mu.Unlock()

	m.persistSession(ctx, accounts, accounts[0])
	m.emit(Event{Kind: EventConnected, Accounts: accounts})

	if _, err := m.RefreshBalance(ctx); err != nil {
		m.logger.Errorf("initial balance refresh failed: %v", err)
	}
}

// handleAccountChange applies a provider push. An empty account list is an
// implicit disconnect.
func (m *Manager) handleAccountChange(accounts []string) {
	if len(accounts) == 0 {
		m.logger.Info("provider reported zero accounts, treating as disconnect")
		m.resetSession(context.Background())
		return
	}

	m.mu.Lock()
	if m.session.Phase != PhaseConnected {
		m.mu.Unlock()
		return
	}
	m.session.Accounts = append([]string(nil), accounts...)
	m.session.ActiveAccount = accounts[0]
	m.mu.Unlock()

	m.persistSession(context.Background(), accounts, accounts[0])
	m.emit(Event{Kind: EventAccountChanged, Account: accounts[0]})

	if _, err := m.RefreshBalance(context.Background()); err != nil {
		m.logger.Errorf("balance refresh after account change failed: %v", err)
	}
}

// recordFailure reports a failed connect/reconnect: back to disconnected,
// error recorded and fanned out.
func (m *Manager) recordFailure(err error) {
	m.mu.Lock()
	m.session.Phase = PhaseDisconnected
	m.session.LastError = errs.Message(err)
	m.mu.Unlock()
	m.emit(Event{Kind: EventError, Err: err})
}

// resetSession is the unconditional local teardown shared by explicit
// disconnect and implicit disconnect pushes.
func (m *Manager) resetSession(ctx context.Context) {
	m.mu.Lock()
	m.stopBalanceMonitorLocked()
	m.session = Session{Phase: PhaseDisconnected}
	m.signPending = make(map[string]bool)
	m.mu.Unlock()

	if err := m.dao.Clear(ctx); err != nil {
		m.logger.Errorf("failed to clear persisted session (continuing): %v",
			errs.Wrap(errs.KindStorageUnavailable, "session clear", err))
	}
	m.emit(Event{Kind: EventDisconnected})
}

func (m *Manager) persistSession(ctx context.Context, accounts []string, active string) {
	encoded, err := json.Marshal(accounts)
	if err != nil {
		m.logger.Errorf("failed to encode account list: %v", err)
		return
	}
	if err := m.dao.Save(ctx, string(encoded), active); err != nil {
		// Persistence failures never break the session itself.
		m.logger.Errorf("failed to persist session (continuing): %v",
			errs.Wrap(errs.KindStorageUnavailable, "session save", err))
	}
}

func (m *Manager) applyBalance(account string, amount uint64) {
	m.mu.Lock()
	if m.session.ActiveAccount != account {
		m.mu.Unlock()
		return
	}
	changed := m.session.Balance != amount
	m.session.Balance = amount
	m.mu.Unlock()

	if changed {
		m.emit(Event{Kind: EventBalanceUpdated, Account: account, Balance: amount})
	}
}

// startBalanceMonitorLocked starts the periodic balance poll. Caller holds
// the lock. The poll is a read-only idempotent query, so overlapping ticks
// are harmless.
func (m *Manager) startBalanceMonitorLocked() {
	m.stopBalanceMonitorLocked()
	stopCh := make(chan struct{})
	m.balanceStop = stopCh

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.balanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.pollBalance()
			}
		}
	}()
}

func (m *Manager) stopBalanceMonitorLocked() {
	if m.balanceStop != nil {
		close(m.balanceStop)
		m.balanceStop = nil
	}
}

func (m *Manager) pollBalance() {
	account, ok := m.ActiveAccount()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info, err := m.node.AccountInformation(ctx, account)
	if err != nil {
		m.logger.Errorf("balance poll failed: %v", err)
		return
	}
	m.applyBalance(account, info.Amount)
}

func (m *Manager) consumeNotifications() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case n, ok := <-m.provider.Notifications():
			if !ok {
				return
			}
			switch n.Kind {
			case provider.NotifyDisconnected:
				m.logger.Info("provider pushed disconnect")
				m.resetSession(context.Background())
			case provider.NotifyAccountsChanged:
				m.handleAccountChange(n.Accounts)
			}
		}
	}
}
