package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"otakuverse/internal/chain"
	"otakuverse/internal/config"
	"otakuverse/internal/errs"
	"otakuverse/internal/model"
	"otakuverse/internal/provider"
)

const testAccount = "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A"

type fakeProvider struct {
	mu             sync.Mutex
	connectFn      func() ([]string, error)
	reconnectCalls int
	reconnectFn    func(call int) ([]string, error)
	signDelay      time.Duration
	signCalls      int
	notifications  chan provider.Notification
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{notifications: make(chan provider.Notification, 4)}
}

func (p *fakeProvider) Connect(context.Context) ([]string, error) {
	p.mu.Lock()
	fn := p.connectFn
	p.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return []string{testAccount}, nil
}

func (p *fakeProvider) ReconnectSession(context.Context) ([]string, error) {
	p.mu.Lock()
	p.reconnectCalls++
	call := p.reconnectCalls
	fn := p.reconnectFn
	p.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return nil, errs.New(errs.KindNoSession, "no previous session found")
}

func (p *fakeProvider) Disconnect(context.Context) error { return nil }

func (p *fakeProvider) SignTransaction(ctx context.Context, _ []byte, _ string) ([]byte, error) {
	p.mu.Lock()
	p.signCalls++
	delay := p.signDelay
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte("signed-blob"), nil
}

func (p *fakeProvider) Notifications() <-chan provider.Notification { return p.notifications }

func (p *fakeProvider) Close() {}

type fakeNode struct {
	mu       sync.Mutex
	balances map[string]uint64
	queries  int
}

func (n *fakeNode) SuggestedParams(context.Context) (types.SuggestedParams, error) {
	return types.SuggestedParams{}, nil
}

func (n *fakeNode) SendRawTransaction(context.Context, []byte) (string, error) {
	return "TXID", nil
}

func (n *fakeNode) PendingTransactionInformation(context.Context, string) (chain.PendingInfo, error) {
	return chain.PendingInfo{}, nil
}

func (n *fakeNode) LastRound(context.Context) (uint64, error) { return 1, nil }

func (n *fakeNode) WaitAfterBlock(context.Context, uint64) error { return nil }

func (n *fakeNode) AccountInformation(_ context.Context, address string) (chain.AccountInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queries++
	return chain.AccountInfo{Address: address, Amount: n.balances[address]}, nil
}

func (n *fakeNode) setBalance(address string, amount uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.balances == nil {
		n.balances = make(map[string]uint64)
	}
	n.balances[address] = amount
}

func testSessionsDao(t *testing.T) model.SessionsDao {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return model.NewSessionsDao(db)
}

func newTestManager(t *testing.T, p provider.Provider, n chain.NodeClient) *Manager {
	t.Helper()
	c := config.WalletConf{
		BalanceIntervalSeconds: 1,
		MaxReconnectAttempts:   3,
		ReconnectBaseDelayMs:   5,
	}
	m := NewManager(c, p, n, testSessionsDao(t))
	t.Cleanup(m.Stop)
	return m
}

func drainUntil(t *testing.T, sub *Subscription, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", kind)
		}
	}
}

func TestConnectHappyPath(t *testing.T) {
	p := newFakeProvider()
	n := &fakeNode{}
	n.setBalance(testAccount, 5_000_000)
	m := newTestManager(t, p, n)
	sub := m.Subscribe()

	accounts, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testAccount}, accounts)

	drainUntil(t, sub, EventConnected)
	ev := drainUntil(t, sub, EventBalanceUpdated)
	assert.Equal(t, uint64(5_000_000), ev.Balance)

	snap := m.Snapshot()
	assert.Equal(t, PhaseConnected, snap.Phase)
	assert.Equal(t, testAccount, snap.ActiveAccount)
	assert.Equal(t, uint64(5_000_000), snap.Balance)
}

func TestConnectZeroAccountsStaysDisconnected(t *testing.T) {
	p := newFakeProvider()
	p.connectFn = func() ([]string, error) { return nil, nil }
	m := newTestManager(t, p, &fakeNode{})

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindNoSession, errs.KindOf(err))

	snap := m.Snapshot()
	assert.Equal(t, PhaseDisconnected, snap.Phase)
	assert.NotEmpty(t, snap.LastError)
}

func TestConnectRejectsWhileConnecting(t *testing.T) {
	p := newFakeProvider()
	release := make(chan struct{})
	p.connectFn = func() ([]string, error) {
		<-release
		return []string{testAccount}, nil
	}
	m := newTestManager(t, p, &fakeNode{})

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return m.Snapshot().Phase == PhaseConnecting
	}, time.Second, 5*time.Millisecond)

	_, err := m.Connect(context.Background())
	assert.Equal(t, errs.KindProviderBusy, errs.KindOf(err))

	close(release)
	require.NoError(t, <-done)
}

func TestReconnectStopsAfterAttemptCap(t *testing.T) {
	p := newFakeProvider()
	p.reconnectFn = func(int) ([]string, error) {
		return nil, errs.New(errs.KindNoSession, "no previous session found")
	}
	m := newTestManager(t, p, &fakeNode{})

	_, err := m.Reconnect(context.Background())
	require.Error(t, err)

	// Initial attempt plus three retries, never a fifth.
	assert.Equal(t, 4, p.reconnectCalls)
	assert.Equal(t, PhaseDisconnected, m.Snapshot().Phase)
}

func TestReconnectSucceedsMidway(t *testing.T) {
	p := newFakeProvider()
	p.reconnectFn = func(call int) ([]string, error) {
		if call < 3 {
			return nil, errs.New(errs.KindProviderBusy, "bridge busy")
		}
		return []string{testAccount}, nil
	}
	m := newTestManager(t, p, &fakeNode{})

	accounts, err := m.Reconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testAccount}, accounts)
	assert.Equal(t, 3, p.reconnectCalls)
	assert.Equal(t, PhaseConnected, m.Snapshot().Phase)
}

func TestDisconnectAlwaysSucceedsAndStopsMonitor(t *testing.T) {
	p := newFakeProvider()
	n := &fakeNode{}
	n.setBalance(testAccount, 1)
	m := newTestManager(t, p, n)
	sub := m.Subscribe()

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	drainUntil(t, sub, EventConnected)

	m.Disconnect(context.Background())
	drainUntil(t, sub, EventDisconnected)

	snap := m.Snapshot()
	assert.Equal(t, PhaseDisconnected, snap.Phase)
	assert.Empty(t, snap.Accounts)
	assert.Zero(t, snap.Balance)

	// No further balance polls once disconnected.
	n.mu.Lock()
	before := n.queries
	n.mu.Unlock()
	time.Sleep(1200 * time.Millisecond)
	n.mu.Lock()
	after := n.queries
	n.mu.Unlock()
	assert.Equal(t, before, after)
}

func TestEmptyAccountPushIsImplicitDisconnect(t *testing.T) {
	p := newFakeProvider()
	m := newTestManager(t, p, &fakeNode{})
	sub := m.Subscribe()
	m.Start()

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	drainUntil(t, sub, EventConnected)

	p.notifications <- provider.Notification{Kind: provider.NotifyAccountsChanged}
	drainUntil(t, sub, EventDisconnected)
	assert.Equal(t, PhaseDisconnected, m.Snapshot().Phase)
}

func TestAccountChangePushReplacesActiveAndRefreshesBalance(t *testing.T) {
	const other = "7ZUECA7HFLZTXENRV24SHLU4AVPUTMTTDUFUBNBD64C73F3UHRTHAIOF6Q"
	p := newFakeProvider()
	n := &fakeNode{}
	n.setBalance(testAccount, 100)
	n.setBalance(other, 900)
	m := newTestManager(t, p, n)
	sub := m.Subscribe()
	m.Start()

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	drainUntil(t, sub, EventConnected)

	p.notifications <- provider.Notification{
		Kind:     provider.NotifyAccountsChanged,
		Accounts: []string{other},
	}
	ev := drainUntil(t, sub, EventAccountChanged)
	assert.Equal(t, other, ev.Account)

	require.Eventually(t, func() bool {
		return m.Snapshot().Balance == 900
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBalanceEventOnlyOnChange(t *testing.T) {
	p := newFakeProvider()
	n := &fakeNode{}
	n.setBalance(testAccount, 42)
	m := newTestManager(t, p, n)
	sub := m.Subscribe()

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	drainUntil(t, sub, EventBalanceUpdated)

	// Unchanged balance: a forced refresh is silent.
	_, err = m.RefreshBalance(context.Background())
	require.NoError(t, err)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected %s event", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}

	n.setBalance(testAccount, 43)
	amount, err := m.RefreshBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(43), amount)
	ev := drainUntil(t, sub, EventBalanceUpdated)
	assert.Equal(t, uint64(43), ev.Balance)
}

func TestSignRejectsConcurrentRequestForSameAccount(t *testing.T) {
	p := newFakeProvider()
	p.signDelay = 300 * time.Millisecond
	m := newTestManager(t, p, &fakeNode{})

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	var txn types.Transaction
	done := make(chan error, 1)
	go func() {
		_, _, err := m.SignTransaction(context.Background(), txn)
		done <- err
	}()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.signCalls == 1
	}, time.Second, 5*time.Millisecond)

	_, _, err = m.SignTransaction(context.Background(), txn)
	assert.Equal(t, errs.KindProviderBusy, errs.KindOf(err))

	require.NoError(t, <-done)

	// The guard is released once the first request finishes.
	p.signDelay = 0
	_, signer, err := m.SignTransaction(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, testAccount, signer)
}

func TestSignWithoutSession(t *testing.T) {
	m := newTestManager(t, newFakeProvider(), &fakeNode{})
	var txn types.Transaction
	_, _, err := m.SignTransaction(context.Background(), txn)
	assert.Equal(t, errs.KindNoSession, errs.KindOf(err))
}
