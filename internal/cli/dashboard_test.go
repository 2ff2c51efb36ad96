package cli

import (
	"context"
	"math/big"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/contract/contracttest"
	"github.com/yolodolo42/icosale/internal/network"
	"github.com/yolodolo42/icosale/internal/provider"
	"github.com/yolodolo42/icosale/internal/provider/providertest"
	"github.com/yolodolo42/icosale/internal/sale"
	"github.com/yolodolo42/icosale/internal/session"
)

var testBuyer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type dashboardFixture struct {
	wallet *providertest.Wallet
	chain  *contracttest.Chain
	deps   dashboardDeps
	feeds  *feeds
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()

	sepolia := chain.DefaultChains()["sepolia"]
	w := providertest.NewWallet(testBuyer, sepolia.ChainID)
	adapter, err := provider.NewAdapter(w)
	require.NoError(t, err)

	c := contracttest.New()
	gateway := contract.NewGateway(c, contracttest.SaleAddress, contracttest.StableAddress)
	sess := session.NewManager(adapter, network.NewGuard(adapter, sepolia, nil), nil, nil)

	deps := dashboardDeps{
		session:        sess,
		quotes:         sale.NewQuoteEngine(gateway, sess, nil, nil),
		orders:         sale.NewOrchestrator(gateway, sess, nil, nil),
		poller:         sale.NewPoller(gateway, nil, nil),
		networkName:    sepolia.Name,
		nativeSymbol:   "ETH",
		nativeDecimals: 18,
	}
	f := subscribe(deps)
	t.Cleanup(f.Unsubscribe)

	return &dashboardFixture{wallet: w, chain: c, deps: deps, feeds: f}
}

func (fx *dashboardFixture) model() dashboard {
	return newDashboard(context.Background(), fx.deps, fx.feeds)
}

func update(t *testing.T, m dashboard, msg tea.Msg) (dashboard, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(dashboard)
	require.True(t, ok)
	return dm, cmd
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func TestDashboard_Quotes(t *testing.T) {
	t.Run("payment amount fills token field", func(t *testing.T) {
		fx := newDashboardFixture(t)
		m := fx.model()

		m.amount.SetValue("1")
		cmd := m.requote()
		require.NotNil(t, cmd)
		assert.True(t, m.quoting)

		m, _ = update(t, m, cmd())
		assert.False(t, m.quoting)
		assert.Equal(t, "1000", m.tokens.Value())
	})

	t.Run("token amount fills payment field", func(t *testing.T) {
		fx := newDashboardFixture(t)
		m := fx.model()
		m.focus = focusTokens

		m.tokens.SetValue("500")
		m, _ = update(t, m, m.requote()())
		assert.Equal(t, "0.5", m.amount.Value())
	})

	t.Run("currency switch requotes", func(t *testing.T) {
		fx := newDashboardFixture(t)
		m := fx.model()

		m.amount.SetValue("100")
		m, _ = update(t, m, m.requote()())

		m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
		assert.Equal(t, sale.Stable, m.selectedCurrency())
		require.NotNil(t, cmd)
		m, _ = update(t, m, cmd())
		assert.Equal(t, "1000", m.tokens.Value())
	})

	t.Run("quotes issued while one is running apply in order", func(t *testing.T) {
		fx := newDashboardFixture(t)
		m := fx.model()

		m.amount.SetValue("1")
		first := m.requote()
		m.amount.SetValue("2")
		assert.Nil(t, m.requote())
		require.NotNil(t, m.nextQuote)

		m, next := update(t, m, first())
		require.NotNil(t, next)
		assert.Nil(t, m.nextQuote)

		m, _ = update(t, m, next())
		assert.Equal(t, "2000", m.tokens.Value())
	})

	t.Run("letters are not typed into amounts", func(t *testing.T) {
		fx := newDashboardFixture(t)
		m := fx.model()

		m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
		assert.Nil(t, cmd)
		assert.Empty(t, m.amount.Value())
	})
}

func TestDashboard_Buy(t *testing.T) {
	t.Run("requires connection", func(t *testing.T) {
		fx := newDashboardFixture(t)
		m := fx.model()
		m.amount.SetValue("1")

		m, cmd := update(t, m, enter())
		assert.Nil(t, cmd)
		assert.True(t, m.noticeErr)
		assert.Equal(t, "Please connect your wallet first", m.notice)
	})

	t.Run("asks for confirmation then buys", func(t *testing.T) {
		fx := newDashboardFixture(t)
		_, err := fx.deps.session.Connect(context.Background())
		require.NoError(t, err)

		m := fx.model()
		require.True(t, m.state.Connected())

		m.amount.SetValue("1")
		m, _ = update(t, m, m.requote()())

		m, cmd := update(t, m, enter())
		assert.Nil(t, cmd)
		assert.True(t, m.confirming)
		assert.Contains(t, m.notice, "Buy ~1000 tokens for 1 ETH")

		m, cmd = update(t, m, enter())
		require.NotNil(t, cmd)
		assert.NotEmpty(t, m.busy)

		m, _ = update(t, m, cmd())
		assert.Empty(t, m.busy)
		assert.False(t, m.noticeErr)
		assert.Contains(t, m.notice, "Purchase confirmed")

		txs := fx.chain.Txs()
		require.Len(t, txs, 1)
		assert.Equal(t, "buyTokensWithETH", txs[0].Method)
		assert.Equal(t, 0, txs[0].Value.Cmp(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
	})

	t.Run("esc cancels confirmation", func(t *testing.T) {
		fx := newDashboardFixture(t)
		_, err := fx.deps.session.Connect(context.Background())
		require.NoError(t, err)

		m := fx.model()
		m.amount.SetValue("1")
		m, _ = update(t, m, m.requote()())
		m, _ = update(t, m, enter())
		require.True(t, m.confirming)

		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		assert.False(t, m.confirming)
		assert.Empty(t, fx.chain.Txs())
	})

	t.Run("invalid amount", func(t *testing.T) {
		fx := newDashboardFixture(t)
		_, err := fx.deps.session.Connect(context.Background())
		require.NoError(t, err)

		m := fx.model()
		m, _ = update(t, m, enter())
		assert.True(t, m.noticeErr)
		assert.Equal(t, "Please enter a valid amount", m.notice)
	})
}

func TestDashboard_Reconnect(t *testing.T) {
	fx := newDashboardFixture(t)
	m := fx.model()

	m, _ = update(t, m, reconnectMsg(session.ReconnectRequired{Reason: session.ReasonAccountLost}))
	require.NotNil(t, m.reconnect)
	assert.Contains(t, m.View(), "Your wallet disconnected. Please reconnect.")

	t.Run("enter reconnects", func(t *testing.T) {
		next, cmd := update(t, m, enter())
		assert.NotNil(t, cmd)
		assert.NotEmpty(t, next.busy)
	})

	t.Run("esc dismisses", func(t *testing.T) {
		next, _ := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		assert.Nil(t, next.reconnect)
	})

	t.Run("reconnect clears the modal", func(t *testing.T) {
		next, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
		require.NotNil(t, cmd)
		next, _ = update(t, next, cmd())
		assert.Nil(t, next.reconnect)
		assert.Equal(t, "Wallet connected", next.notice)
	})
}

func TestDashboard_SaleView(t *testing.T) {
	fx := newDashboardFixture(t)
	m := fx.model()
	assert.Contains(t, m.View(), "Loading sale status")

	snap := fx.deps.poller.Refresh(context.Background())
	m, _ = update(t, m, snapshotMsg(snap))
	view := m.View()
	assert.Contains(t, view, "Active")
	assert.Contains(t, view, "1000000.000000")
}
