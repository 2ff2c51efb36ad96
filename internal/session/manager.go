// Package session owns the wallet connection: which account is connected,
// on which chain, and when the user has to reconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/icosale/internal/logger"
	"github.com/yolodolo42/icosale/internal/metrics"
	"github.com/yolodolo42/icosale/internal/network"
	"github.com/yolodolo42/icosale/internal/provider"
)

var (
	ErrNoAccounts      = errors.New("wallet returned no accounts")
	ErrConnectInFlight = errors.New("connection already in progress")
	ErrAlreadyStarted  = errors.New("session manager already started")
	ErrConnectRejected = errors.New("connection request rejected")
)

// Reason says why the session was cleared.
type Reason int

const (
	ReasonAccountLost Reason = iota
	ReasonAccountChanged
	ReasonChainChanged
	ReasonDisconnected
)

func (r Reason) String() string {
	switch r {
	case ReasonAccountLost:
		return "account_lost"
	case ReasonAccountChanged:
		return "account_changed"
	case ReasonChainChanged:
		return "chain_changed"
	case ReasonDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ReconnectRequired is raised when a provider event invalidated the
// session. The manager never reconnects by itself; the caller must ask the
// user.
type ReconnectRequired struct {
	Reason  Reason
	Account *common.Address // the wallet's new account, if any
	ChainID *big.Int        // the wallet's new chain, if known
}

func (r ReconnectRequired) Message() string {
	switch r.Reason {
	case ReasonAccountLost:
		return "Your wallet disconnected. Please reconnect."
	case ReasonAccountChanged:
		return "Your wallet account changed. Please reconnect with the new account."
	case ReasonChainChanged:
		return "Your wallet network changed. Please reconnect."
	default:
		return "Your wallet connection was lost. Please reconnect."
	}
}

// State is a snapshot of the session.
type State struct {
	Account    *common.Address
	ChainID    *big.Int
	Connecting bool
}

func (s State) Connected() bool {
	return s.Account != nil
}

func (s State) copy() State {
	out := State{Connecting: s.Connecting}
	if s.Account != nil {
		a := *s.Account
		out.Account = &a
	}
	if s.ChainID != nil {
		out.ChainID = new(big.Int).Set(s.ChainID)
	}
	return out
}

// Manager tracks one wallet session. Subscribers of Changes and Reconnect
// must keep draining their channels; event delivery blocks until they do.
type Manager struct {
	adapter *provider.Adapter
	guard   *network.Guard
	log     logger.Logger
	metrics metrics.Recorder

	mu    sync.Mutex
	state State

	changes   event.Feed
	reconnect event.Feed

	sub  event.Subscription
	done chan struct{}
}

// NewManager builds a session manager. A nil adapter means no wallet is
// available; Start and Connect then fail with provider.ErrProviderMissing.
func NewManager(adapter *provider.Adapter, guard *network.Guard, log logger.Logger, rec metrics.Recorder) *Manager {
	return &Manager{
		adapter: adapter,
		guard:   guard,
		log:     logger.OrNoop(log),
		metrics: metrics.OrNoop(rec),
	}
}

// State returns the current session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.copy()
}

// Account returns the connected account.
func (m *Manager) Account() (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Account == nil {
		return common.Address{}, false
	}
	return *m.state.Account, true
}

// SubscribeChanges delivers every session state change.
func (m *Manager) SubscribeChanges(ch chan<- State) event.Subscription {
	return m.changes.Subscribe(ch)
}

// SubscribeReconnect delivers reconnect-required signals.
func (m *Manager) SubscribeReconnect(ch chan<- ReconnectRequired) event.Subscription {
	return m.reconnect.Subscribe(ch)
}

// Start listens for provider events and restores an account the wallet
// has already authorized, without prompting.
func (m *Manager) Start(ctx context.Context) error {
	if m.adapter == nil {
		return provider.ErrProviderMissing
	}

	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	events := make(chan provider.Event, 16)
	m.sub = m.adapter.SubscribeEvents(events)
	m.done = make(chan struct{})
	sub, done := m.sub, m.done
	m.mu.Unlock()

	go m.loop(events, sub, done)

	m.restore(ctx)
	return nil
}

// Stop unsubscribes from the provider and waits for the event loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	sub, done := m.sub, m.done
	m.sub, m.done = nil, nil
	m.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Unsubscribe()
	<-done
}

func (m *Manager) loop(events <-chan provider.Event, sub event.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev := <-events:
			m.handle(ev)
		case err := <-sub.Err():
			if err != nil {
				m.log.Error("provider subscription failed", map[string]any{"error": err})
			}
			return
		}
	}
}

func (m *Manager) restore(ctx context.Context) {
	accounts, err := m.adapter.Accounts(ctx)
	if err != nil {
		m.log.Warn("could not read authorized accounts", map[string]any{"error": err})
		return
	}
	chainID, err := m.adapter.ChainID(ctx)
	if err != nil {
		m.log.Warn("could not read chain id", map[string]any{"error": err})
		return
	}
	if len(accounts) == 0 {
		m.setChain(chainID)
		return
	}
	if m.guard != nil && !m.guard.OnRequiredChain(chainID) {
		m.log.Info("authorized account on wrong network, not restoring", map[string]any{
			"account": accounts[0].Hex(),
			"chain":   chainID.String(),
		})
		m.setChain(chainID)
		return
	}

	m.mu.Lock()
	if m.state.Account != nil || m.state.Connecting {
		m.mu.Unlock()
		return
	}
	account := accounts[0]
	m.state.Account = &account
	m.state.ChainID = chainID
	snapshot := m.state.copy()
	m.mu.Unlock()

	m.log.Info("session restored", map[string]any{"account": account.Hex(), "chain": chainID.String()})
	m.metrics.IncCounter(metrics.SessionConnected, map[string]string{"source": "restore"})
	m.changes.Send(snapshot)
}

// Connect puts the wallet on the required network and asks it for an
// account. On failure the session stays disconnected.
func (m *Manager) Connect(ctx context.Context) (common.Address, error) {
	if m.adapter == nil {
		return common.Address{}, provider.ErrProviderMissing
	}

	m.mu.Lock()
	if m.state.Connecting {
		m.mu.Unlock()
		return common.Address{}, ErrConnectInFlight
	}
	m.state.Connecting = true
	snapshot := m.state.copy()
	m.mu.Unlock()
	m.changes.Send(snapshot)

	account, chainID, err := m.connect(ctx)

	m.mu.Lock()
	m.state.Connecting = false
	if err == nil {
		m.state.Account = &account
		m.state.ChainID = chainID
	}
	snapshot = m.state.copy()
	m.mu.Unlock()
	m.changes.Send(snapshot)

	if err != nil {
		m.log.Warn("connect failed", map[string]any{"error": err})
		return common.Address{}, err
	}
	m.log.Info("wallet connected", map[string]any{"account": account.Hex(), "chain": chainID.String()})
	m.metrics.IncCounter(metrics.SessionConnected, map[string]string{"source": "connect"})
	return account, nil
}

func (m *Manager) connect(ctx context.Context) (common.Address, *big.Int, error) {
	if m.guard != nil {
		if err := m.guard.EnsureRequiredNetwork(ctx); err != nil {
			return common.Address{}, nil, err
		}
	}

	accounts, err := m.adapter.RequestAccounts(ctx)
	if err != nil {
		if provider.IsUserRejected(err) {
			return common.Address{}, nil, fmt.Errorf("%w: %v", ErrConnectRejected, err)
		}
		return common.Address{}, nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, nil, ErrNoAccounts
	}

	chainID, err := m.adapter.ChainID(ctx)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("read chain id: %w", err)
	}
	if m.guard != nil && !m.guard.OnRequiredChain(chainID) {
		return common.Address{}, nil, fmt.Errorf("%w: wallet moved to chain %s", network.ErrNetworkMismatch, chainID)
	}
	return accounts[0], chainID, nil
}

// Disconnect forgets the account locally. The wallet keeps its
// authorization.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state.Account == nil {
		m.mu.Unlock()
		return
	}
	m.state.Account = nil
	snapshot := m.state.copy()
	m.mu.Unlock()

	m.log.Info("wallet disconnected", nil)
	m.metrics.IncCounter(metrics.SessionReset, map[string]string{"reason": "user"})
	m.changes.Send(snapshot)
}

func (m *Manager) setChain(id *big.Int) {
	m.mu.Lock()
	m.state.ChainID = id
	snapshot := m.state.copy()
	m.mu.Unlock()
	m.changes.Send(snapshot)
}

func (m *Manager) handle(ev provider.Event) {
	m.mu.Lock()
	connected := m.state.Account != nil
	var (
		signal *ReconnectRequired
		notify bool
	)

	switch ev.Kind {
	case provider.AccountsChanged:
		if !connected {
			break
		}
		if len(ev.Accounts) == 0 {
			signal = &ReconnectRequired{Reason: ReasonAccountLost}
		} else if ev.Accounts[0] != *m.state.Account {
			next := ev.Accounts[0]
			signal = &ReconnectRequired{Reason: ReasonAccountChanged, Account: &next}
		}
	case provider.ChainChanged:
		if ev.ChainID == nil {
			if connected {
				signal = &ReconnectRequired{Reason: ReasonChainChanged}
			}
			break
		}
		same := m.state.ChainID != nil && m.state.ChainID.Cmp(ev.ChainID) == 0
		// The guard's own switch during Connect lands here too, either
		// while connecting or after Connect stored the new chain.
		expected := m.state.Connecting && m.guard != nil && m.guard.OnRequiredChain(ev.ChainID)
		if !same {
			m.state.ChainID = new(big.Int).Set(ev.ChainID)
			notify = true
		}
		if connected && !same && !expected {
			signal = &ReconnectRequired{Reason: ReasonChainChanged, ChainID: m.state.ChainID}
		}
	case provider.Disconnected:
		if connected {
			signal = &ReconnectRequired{Reason: ReasonDisconnected}
		}
	}

	if signal != nil {
		m.state.Account = nil
		notify = true
	}
	snapshot := m.state.copy()
	m.mu.Unlock()

	if notify {
		m.changes.Send(snapshot)
	}
	if signal == nil {
		return
	}

	fields := map[string]any{"reason": signal.Reason.String(), "event": ev.Kind.String()}
	if ev.Err != nil {
		fields["error"] = ev.Err
	}
	m.log.Warn("session cleared, reconnect required", fields)
	m.metrics.IncCounter(metrics.SessionReset, map[string]string{"reason": signal.Reason.String()})
	m.reconnect.Send(*signal)
}
