package session

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/network"
	"github.com/yolodolo42/icosale/internal/provider"
	"github.com/yolodolo42/icosale/internal/provider/providertest"
)

var (
	account = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	other   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	sepolia = big.NewInt(11155111)
)

func newManager(t *testing.T, w *providertest.Wallet) *Manager {
	t.Helper()
	a, err := provider.NewAdapter(w)
	require.NoError(t, err)
	guard := network.NewGuard(a, chain.DefaultChains()["sepolia"], nil)
	m := NewManager(a, guard, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m
}

func waitReconnect(t *testing.T, ch <-chan ReconnectRequired) ReconnectRequired {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect-required signal")
		return ReconnectRequired{}
	}
}

func TestManager_NoProvider(t *testing.T) {
	m := NewManager(nil, nil, nil, nil)
	assert.ErrorIs(t, m.Start(context.Background()), provider.ErrProviderMissing)
	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, provider.ErrProviderMissing)
	assert.False(t, m.State().Connected())
}

func TestManager_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("switches network then connects", func(t *testing.T) {
		w := providertest.NewWallet(account, big.NewInt(1), sepolia)
		m := newManager(t, w)

		got, err := m.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, account, got)

		st := m.State()
		require.True(t, st.Connected())
		assert.Equal(t, account, *st.Account)
		assert.Equal(t, sepolia.Int64(), st.ChainID.Int64())
		assert.False(t, st.Connecting)
	})

	t.Run("own network switch keeps the new session", func(t *testing.T) {
		w := providertest.NewWallet(account, big.NewInt(1), sepolia)
		m := newManager(t, w)
		ch := make(chan ReconnectRequired, 1)
		sub := m.SubscribeReconnect(ch)
		defer sub.Unsubscribe()

		_, err := m.Connect(ctx)
		require.NoError(t, err)

		assert.Never(t, func() bool { return !m.State().Connected() }, 300*time.Millisecond, 10*time.Millisecond)
		assert.Empty(t, ch)
		assert.Equal(t, sepolia.Int64(), m.State().ChainID.Int64())
	})

	t.Run("rejected network switch leaves session disconnected", func(t *testing.T) {
		w := providertest.NewWallet(account, big.NewInt(1), sepolia)
		w.RejectSwitch = true
		m := newManager(t, w)

		_, err := m.Connect(ctx)
		assert.ErrorIs(t, err, network.ErrNetworkSwitchRejected)

		st := m.State()
		assert.False(t, st.Connected())
		assert.False(t, st.Connecting)
		assert.Equal(t, 0, w.Count(provider.MethodRequestAccounts))
	})

	t.Run("rejected account request", func(t *testing.T) {
		w := providertest.NewWallet(account, sepolia)
		w.RejectConnect = true
		m := newManager(t, w)

		_, err := m.Connect(ctx)
		assert.ErrorIs(t, err, ErrConnectRejected)
		assert.False(t, m.State().Connected())
	})

	t.Run("empty account list", func(t *testing.T) {
		w := providertest.NewWallet(account, sepolia)
		w.Handle(provider.MethodRequestAccounts, func([]any) (any, error) { return []common.Address{}, nil })
		m := newManager(t, w)

		_, err := m.Connect(ctx)
		assert.ErrorIs(t, err, ErrNoAccounts)
	})

	t.Run("publishes connecting then connected", func(t *testing.T) {
		w := providertest.NewWallet(account, sepolia)
		m := newManager(t, w)
		changes := make(chan State, 4)
		sub := m.SubscribeChanges(changes)
		defer sub.Unsubscribe()

		_, err := m.Connect(ctx)
		require.NoError(t, err)

		first := <-changes
		assert.True(t, first.Connecting)
		assert.False(t, first.Connected())
		second := <-changes
		assert.False(t, second.Connecting)
		assert.True(t, second.Connected())
	})
}

func TestManager_Restore(t *testing.T) {
	t.Run("authorized account is restored silently", func(t *testing.T) {
		w := providertest.NewWallet(account, sepolia)
		w.Authorize()
		m := newManager(t, w)

		got, ok := m.Account()
		require.True(t, ok)
		assert.Equal(t, account, got)
		assert.Equal(t, 0, w.Count(provider.MethodRequestAccounts))
	})

	t.Run("unauthorized wallet stays disconnected", func(t *testing.T) {
		w := providertest.NewWallet(account, sepolia)
		m := newManager(t, w)
		assert.False(t, m.State().Connected())
		assert.Equal(t, sepolia.Int64(), m.State().ChainID.Int64())
	})

	t.Run("wrong network is not restored", func(t *testing.T) {
		w := providertest.NewWallet(account, big.NewInt(1))
		w.Authorize()
		m := newManager(t, w)
		assert.False(t, m.State().Connected())
	})
}

func TestManager_Events(t *testing.T) {
	connected := func(t *testing.T) (*Manager, *providertest.Wallet, chan ReconnectRequired) {
		w := providertest.NewWallet(account, sepolia)
		w.Authorize()
		m := newManager(t, w)
		require.True(t, m.State().Connected())

		ch := make(chan ReconnectRequired, 4)
		sub := m.SubscribeReconnect(ch)
		t.Cleanup(sub.Unsubscribe)
		return m, w, ch
	}

	t.Run("empty accounts clears session and raises reconnect", func(t *testing.T) {
		m, w, ch := connected(t)
		w.Emit(provider.Event{Kind: provider.AccountsChanged, Accounts: []common.Address{}})

		r := waitReconnect(t, ch)
		assert.Equal(t, ReasonAccountLost, r.Reason)
		assert.False(t, m.State().Connected())
	})

	t.Run("different account", func(t *testing.T) {
		m, w, ch := connected(t)
		w.Emit(provider.Event{Kind: provider.AccountsChanged, Accounts: []common.Address{other}})

		r := waitReconnect(t, ch)
		assert.Equal(t, ReasonAccountChanged, r.Reason)
		require.NotNil(t, r.Account)
		assert.Equal(t, other, *r.Account)
		assert.False(t, m.State().Connected())
	})

	t.Run("same account is ignored", func(t *testing.T) {
		m, w, ch := connected(t)
		w.Emit(provider.Event{Kind: provider.AccountsChanged, Accounts: []common.Address{account}})
		// A following disconnect proves the first event was processed.
		w.Emit(provider.Event{Kind: provider.Disconnected})

		r := waitReconnect(t, ch)
		assert.Equal(t, ReasonDisconnected, r.Reason)
		assert.False(t, m.State().Connected())
	})

	t.Run("chain change", func(t *testing.T) {
		m, w, ch := connected(t)
		w.Emit(provider.Event{Kind: provider.ChainChanged, ChainID: big.NewInt(1)})

		r := waitReconnect(t, ch)
		assert.Equal(t, ReasonChainChanged, r.Reason)
		assert.Equal(t, int64(1), r.ChainID.Int64())
		st := m.State()
		assert.False(t, st.Connected())
		assert.Equal(t, int64(1), st.ChainID.Int64())
	})

	t.Run("late report of the current chain is ignored", func(t *testing.T) {
		_, w, ch := connected(t)
		w.Emit(provider.Event{Kind: provider.ChainChanged, ChainID: new(big.Int).Set(sepolia)})
		w.Emit(provider.Event{Kind: provider.Disconnected})

		r := waitReconnect(t, ch)
		assert.Equal(t, ReasonDisconnected, r.Reason)
	})

	t.Run("events while disconnected only track the chain", func(t *testing.T) {
		w := providertest.NewWallet(account, sepolia)
		m := newManager(t, w)
		ch := make(chan ReconnectRequired, 1)
		sub := m.SubscribeReconnect(ch)
		defer sub.Unsubscribe()
		changes := make(chan State, 1)
		csub := m.SubscribeChanges(changes)
		defer csub.Unsubscribe()

		w.Emit(provider.Event{Kind: provider.AccountsChanged, Accounts: []common.Address{}})
		w.Emit(provider.Event{Kind: provider.ChainChanged, ChainID: big.NewInt(1)})

		st := <-changes
		assert.Equal(t, int64(1), st.ChainID.Int64())
		assert.Empty(t, ch)
	})
}

func TestManager_ChainChangeWhileConnecting(t *testing.T) {
	w := providertest.NewWallet(account, big.NewInt(1), sepolia)
	a, err := provider.NewAdapter(w)
	require.NoError(t, err)
	m := NewManager(a, network.NewGuard(a, chain.DefaultChains()["sepolia"], nil), nil, nil)
	ch := make(chan ReconnectRequired, 1)
	sub := m.SubscribeReconnect(ch)
	defer sub.Unsubscribe()

	acct := account
	m.state = State{Account: &acct, ChainID: big.NewInt(1), Connecting: true}

	t.Run("switch to the required chain keeps the account", func(t *testing.T) {
		m.handle(provider.Event{Kind: provider.ChainChanged, ChainID: new(big.Int).Set(sepolia)})
		st := m.State()
		assert.True(t, st.Connected())
		assert.Equal(t, sepolia.Int64(), st.ChainID.Int64())
		assert.Empty(t, ch)
	})

	t.Run("any other chain still clears the session", func(t *testing.T) {
		m.handle(provider.Event{Kind: provider.ChainChanged, ChainID: big.NewInt(5)})
		assert.False(t, m.State().Connected())
		r := waitReconnect(t, ch)
		assert.Equal(t, ReasonChainChanged, r.Reason)
	})
}

func TestManager_Disconnect(t *testing.T) {
	w := providertest.NewWallet(account, sepolia)
	w.Authorize()
	m := newManager(t, w)
	require.True(t, m.State().Connected())

	m.Disconnect()
	assert.False(t, m.State().Connected())

	// Local only: the wallet still reports the account.
	accounts, err := w.Request(context.Background(), provider.MethodAccounts)
	require.NoError(t, err)
	assert.Contains(t, string(accounts), "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
}

func TestManager_StopIsIdempotent(t *testing.T) {
	w := providertest.NewWallet(account, sepolia)
	a, err := provider.NewAdapter(w)
	require.NoError(t, err)
	m := NewManager(a, nil, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
	m.Stop()
	m.Stop()
}
