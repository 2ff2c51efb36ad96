package cli

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/provider"
	"github.com/yolodolo42/icosale/internal/sale"
	"github.com/yolodolo42/icosale/internal/session"
	"github.com/yolodolo42/icosale/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive sale dashboard (default command)",
	Long: `Show the live sale status and countdown, quote as you type and buy
with ETH or USDT. Pressing enter twice is the confirmation for every wallet
prompt the purchase triggers.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

type focusField int

const (
	focusAmount focusField = iota
	focusTokens
)

// Messages fed back into the model.
type (
	stateMsg     session.State
	reconnectMsg session.ReconnectRequired
	snapshotMsg  sale.Snapshot
	countdownMsg sale.Countdown
	priceMsg     struct {
		price string
		err   error
	}
	quoteMsg    sale.Quote
	connectMsg  struct{ err error }
	purchaseMsg struct {
		result *sale.PurchaseResult
		err    error
	}
	balancesMsg struct {
		account        common.Address
		native, stable *big.Int
		err            error
	}
)

// dashboardDeps are the components the dashboard drives.
type dashboardDeps struct {
	session  *session.Manager
	quotes   *sale.QuoteEngine
	orders   *sale.Orchestrator
	poller   *sale.Poller
	balances func(ctx context.Context, account common.Address) (native, stable *big.Int, err error)

	networkName    string
	nativeSymbol   string
	nativeDecimals uint8
	explorerURL    string
}

// feeds are the subscriptions the dashboard reads. Unsubscribe before
// stopping the session or poller; their sends wait for these channels.
type feeds struct {
	states     chan session.State
	reconnects chan session.ReconnectRequired
	snapshots  chan sale.Snapshot
	countdowns chan sale.Countdown
	subs       []event.Subscription
}

func subscribe(d dashboardDeps) *feeds {
	f := &feeds{
		states:     make(chan session.State, 16),
		reconnects: make(chan session.ReconnectRequired, 4),
		snapshots:  make(chan sale.Snapshot, 4),
		countdowns: make(chan sale.Countdown, 4),
	}
	f.subs = append(f.subs,
		d.session.SubscribeChanges(f.states),
		d.session.SubscribeReconnect(f.reconnects),
		d.poller.SubscribeSnapshots(f.snapshots),
		d.poller.SubscribeCountdown(f.countdowns),
	)
	return f
}

func (f *feeds) Unsubscribe() {
	for _, s := range f.subs {
		s.Unsubscribe()
	}
}

type dashboard struct {
	ctx   context.Context
	deps  dashboardDeps
	feeds *feeds
	calc  *sale.Calculator

	state     session.State
	reconnect *session.ReconnectRequired
	native    *big.Int
	stable    *big.Int

	snapshot  sale.Snapshot
	haveSnap  bool
	countdown sale.Countdown
	price     string

	currency ui.Selector
	amount   ui.Prompt
	tokens   ui.Prompt
	focus    focusField

	// quoting is set while a quote runs; nextQuote holds the newest request
	// made meanwhile so quotes apply in input order.
	quoting   bool
	nextQuote func() sale.Quote

	confirming bool
	busy       string
	notice     string
	noticeErr  bool

	progress progress.Model
	spinner  spinner.Model
	width    int
	quitting bool
}

func newDashboard(ctx context.Context, deps dashboardDeps, f *feeds) dashboard {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.PromptStyle

	items := make([]ui.SelectorItem, 0, len(sale.Currencies()))
	for i, c := range sale.Currencies() {
		items = append(items, ui.SelectorItem{ID: c.String(), Label: c.Symbol(), Current: i == 0})
	}

	amount := ui.NewPrompt("Pay")
	amount.Focus()

	return dashboard{
		ctx:      ctx,
		deps:     deps,
		feeds:    f,
		calc:     sale.NewCalculator(deps.quotes, sale.Native),
		state:    deps.session.State(),
		currency: ui.NewSelector("Currency", items),
		amount:   amount,
		tokens:   ui.NewPrompt("Receive"),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  sp,
		width:    80,
	}
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitState(),
		m.waitReconnect(),
		m.waitSnapshot(),
		m.waitCountdown(),
		m.fetchPrice(),
	)
}

func (m dashboard) waitState() tea.Cmd {
	ch := m.feeds.states
	return func() tea.Msg { return stateMsg(<-ch) }
}

func (m dashboard) waitReconnect() tea.Cmd {
	ch := m.feeds.reconnects
	return func() tea.Msg { return reconnectMsg(<-ch) }
}

func (m dashboard) waitSnapshot() tea.Cmd {
	ch := m.feeds.snapshots
	return func() tea.Msg { return snapshotMsg(<-ch) }
}

func (m dashboard) waitCountdown() tea.Cmd {
	ch := m.feeds.countdowns
	return func() tea.Msg { return countdownMsg(<-ch) }
}

func (m dashboard) fetchPrice() tea.Cmd {
	ctx, quotes := m.ctx, m.deps.quotes
	return func() tea.Msg {
		price, err := quotes.TokenPrice(ctx)
		return priceMsg{price: price, err: err}
	}
}

func (m dashboard) fetchBalances(account common.Address) tea.Cmd {
	if m.deps.balances == nil {
		return nil
	}
	ctx, balances := m.ctx, m.deps.balances
	return func() tea.Msg {
		native, stable, err := balances(ctx, account)
		return balancesMsg{account: account, native: native, stable: stable, err: err}
	}
}

func (m dashboard) selectedCurrency() sale.Currency {
	c, err := sale.ParseCurrency(m.currency.Selected())
	if err != nil {
		return sale.Native
	}
	return c
}

// queueQuote runs q now, or after the quote in flight finishes.
func (m *dashboard) queueQuote(q func() sale.Quote) tea.Cmd {
	if m.quoting {
		m.nextQuote = q
		return nil
	}
	m.quoting = true
	return func() tea.Msg { return quoteMsg(q()) }
}

func (m *dashboard) requote() tea.Cmd {
	ctx, calc := m.ctx, m.calc
	if m.focus == focusTokens {
		v := m.tokens.Value()
		return m.queueQuote(func() sale.Quote { return calc.SetTokens(ctx, v) })
	}
	v := m.amount.Value()
	return m.queueQuote(func() sale.Quote { return calc.SetAmount(ctx, v) })
}

func (m *dashboard) setNotice(msg string, isErr bool) {
	m.notice, m.noticeErr = msg, isErr
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(60, max(20, msg.Width-30))
		return m, nil

	case stateMsg:
		prev := m.state
		m.state = session.State(msg)
		cmds := []tea.Cmd{m.waitState()}
		if m.state.Account != nil && (prev.Account == nil || *prev.Account != *m.state.Account) {
			cmds = append(cmds, m.fetchBalances(*m.state.Account))
		}
		if m.state.Account == nil {
			m.native, m.stable = nil, nil
		}
		return m, tea.Batch(cmds...)

	case reconnectMsg:
		r := session.ReconnectRequired(msg)
		m.reconnect = &r
		m.confirming = false
		return m, m.waitReconnect()

	case snapshotMsg:
		m.snapshot = sale.Snapshot(msg)
		m.haveSnap = m.snapshot.Sold != nil
		if m.snapshot.Warning != nil {
			m.setNotice(sale.UserMessage(m.snapshot.Warning), true)
		}
		return m, tea.Batch(m.waitSnapshot(), m.fetchPrice())

	case countdownMsg:
		m.countdown = sale.Countdown(msg)
		return m, m.waitCountdown()

	case priceMsg:
		if msg.err == nil {
			m.price = msg.price
		}
		return m, nil

	case quoteMsg:
		m.quoting = false
		q := sale.Quote(msg)
		if m.nextQuote != nil {
			next := m.nextQuote
			m.nextQuote = nil
			cmd := m.queueQuote(next)
			return m, cmd
		}
		amount, tokens := m.calc.Inputs()
		if m.calc.Mode() == sale.TokensToAmount {
			m.amount.SetValue(amount)
		} else {
			m.tokens.SetValue(tokens)
		}
		if q.Warning != nil {
			m.setNotice(sale.UserMessage(q.Warning), true)
		} else if m.noticeErr {
			m.setNotice("", false)
		}
		return m, nil

	case connectMsg:
		m.busy = ""
		if msg.err != nil {
			m.setNotice(connectMessage(msg.err), true)
		} else {
			m.reconnect = nil
			m.setNotice("Wallet connected", false)
		}
		return m, nil

	case balancesMsg:
		if msg.err == nil && m.state.Account != nil && *m.state.Account == msg.account {
			m.native, m.stable = msg.native, msg.stable
		}
		return m, nil

	case purchaseMsg:
		m.busy = ""
		if msg.err != nil {
			m.setNotice(sale.UserMessage(msg.err), true)
			return m, nil
		}
		notice := "Purchase confirmed: " + msg.result.TxHash.Hex()
		if m.deps.explorerURL != "" {
			notice += "\n" + m.deps.explorerURL + "/tx/" + msg.result.TxHash.Hex()
		}
		m.setNotice(notice, false)
		m.amount.Reset()
		m.tokens.Reset()
		cmds := []tea.Cmd{m.requote()}
		if m.state.Account != nil {
			cmds = append(cmds, m.fetchBalances(*m.state.Account))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	cmd := m.updateFocused(msg)
	return m, cmd
}

func (m *dashboard) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	var changed bool
	if m.focus == focusTokens {
		cmd, changed = m.tokens.Update(msg)
	} else {
		cmd, changed = m.amount.Update(msg)
	}
	if !changed {
		return cmd
	}
	m.confirming = false
	return tea.Batch(cmd, m.requote())
}

func (m dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.reconnect != nil {
		switch key {
		case "c", "enter":
			return m.connect()
		case "esc":
			m.reconnect = nil
		case "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "tab", "shift+tab":
		if m.focus == focusAmount {
			m.focus = focusTokens
			m.amount.Blur()
			cmd := m.tokens.Focus()
			return m, cmd
		}
		m.focus = focusAmount
		m.tokens.Blur()
		cmd := m.amount.Focus()
		return m, cmd
	case "s":
		m.currency.Cycle(1)
		m.confirming = false
		ctx, calc, cur := m.ctx, m.calc, m.selectedCurrency()
		cmd := m.queueQuote(func() sale.Quote { return calc.SetCurrency(ctx, cur) })
		return m, cmd
	case "c":
		return m.connect()
	case "d":
		m.deps.session.Disconnect()
		m.setNotice("Wallet disconnected", false)
		return m, nil
	case "r":
		poller, ctx := m.deps.poller, m.ctx
		return m, func() tea.Msg {
			poller.Refresh(ctx)
			return nil
		}
	case "esc":
		m.confirming = false
		return m, nil
	case "enter":
		return m.buy()
	}

	cmd := m.updateFocused(msg)
	return m, cmd
}

func (m dashboard) connect() (tea.Model, tea.Cmd) {
	if m.busy != "" {
		return m, nil
	}
	m.busy = "Connecting wallet"
	sess, ctx := m.deps.session, m.ctx
	return m, func() tea.Msg {
		_, err := sess.Connect(ctx)
		return connectMsg{err: err}
	}
}

func (m dashboard) buy() (tea.Model, tea.Cmd) {
	if m.busy != "" || m.deps.orders.IsLoading() {
		return m, nil
	}
	if !m.state.Connected() {
		m.setNotice(sale.UserMessage(sale.ErrNotConnected), true)
		return m, nil
	}
	if m.quoting {
		m.setNotice("Quote is updating, try again", true)
		return m, nil
	}

	cur := m.selectedCurrency()
	amount := m.calc.PaymentAmount()
	if _, err := chain.ParsePositiveUnits(amount, cur.Decimals()); err != nil {
		m.setNotice(sale.UserMessage(err), true)
		return m, nil
	}

	if !m.confirming {
		m.confirming = true
		_, tokens := m.calc.Inputs()
		msg := fmt.Sprintf("Buy ~%s tokens for %s %s? enter to confirm, esc to cancel", tokens, amount, cur.Symbol())
		if cur.NeedsApproval() {
			msg += "\nThe sale contract may first need approval to spend your " + cur.Symbol() + "."
		}
		m.setNotice(msg, false)
		return m, nil
	}

	m.confirming = false
	m.busy = "Waiting for the wallet and confirmations"
	m.setNotice("", false)
	orders, ctx := m.deps.orders, m.ctx
	return m, func() tea.Msg {
		result, err := orders.Buy(ctx, amount, cur)
		return purchaseMsg{result: result, err: err}
	}
}

func (m dashboard) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("  icosale · "+m.deps.networkName) + "  " + m.walletLine() + "\n\n")

	if m.reconnect != nil {
		body := ui.WarningStyle.Render(ui.SymbolWarning+" "+m.reconnect.Message()) +
			"\n\n" + ui.HelpStyle.Render("c reconnect • esc dismiss • q quit")
		b.WriteString(ui.ModalStyle.Render(body) + "\n")
		return b.String()
	}

	b.WriteString(ui.PanelStyle.Render(m.saleView()) + "\n")
	b.WriteString(ui.PanelStyle.Render(m.formView()) + "\n")

	if m.busy != "" {
		b.WriteString(fmt.Sprintf("\n  %s %s...\n", m.spinner.View(), m.busy))
	} else if m.notice != "" {
		style := ui.SuccessStyle
		if m.noticeErr {
			style = ui.ErrorStyle
		}
		b.WriteString("\n  " + style.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + ui.HelpStyle.Render("  tab field • s currency • enter buy • c connect • d disconnect • r refresh • q quit"))
	return b.String()
}

func (m dashboard) walletLine() string {
	if m.state.Connecting {
		return ui.WarningStyle.Render(ui.SymbolPending + " connecting")
	}
	if m.state.Account == nil {
		return ui.SelectorDim.Render(ui.SymbolBullet + " not connected")
	}
	return ui.SuccessStyle.Render(ui.SymbolBullet + " " + shortAddress(*m.state.Account))
}

func (m dashboard) saleView() string {
	if !m.haveSnap {
		return ui.SelectorDim.Render("Loading sale status...")
	}
	snap := m.snapshot
	phase := sale.DeriveState(time.Now(), snap.Start, snap.End)

	countdown := m.countdown
	if countdown == (sale.Countdown{}) {
		countdown = sale.CountdownTo(time.Now(), snap.End)
	}

	rows := []string{
		ui.Field("Phase", phase.String()),
		ui.Field("Ends in", countdown.String()),
		ui.Field("Sold", fmt.Sprintf("%s / %s",
			chain.FormatBalance(snap.Sold, sale.TokenDecimals),
			chain.FormatBalance(snap.HardCap, sale.TokenDecimals))),
		ui.Field("Progress", m.progress.ViewAs(snap.Progress/100)),
	}
	if phase == sale.NotStarted {
		rows[1] = ui.Field("Starts", snap.Start.Local().Format(time.RFC1123))
	}
	if m.price != "" {
		rows = append(rows, ui.Field("Price", m.price+" "+sale.Stable.Symbol()))
	}
	return strings.Join(rows, "\n")
}

func (m dashboard) formView() string {
	rows := []string{
		m.currency.Inline(),
		m.amount.View() + " " + ui.SelectorDim.Render(m.selectedCurrency().Symbol()),
		m.tokens.View() + " " + ui.SelectorDim.Render("tokens"),
	}
	if m.native != nil && m.stable != nil {
		rows = append(rows, "",
			ui.Field("Balance", fmt.Sprintf("%s %s  %s %s",
				chain.FormatBalance(m.native, m.deps.nativeDecimals), m.deps.nativeSymbol,
				chain.FormatBalance(m.stable, sale.Stable.Decimals()), sale.Stable.Symbol())))
	}
	return strings.Join(rows, "\n")
}

func shortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func dashboardDepsFor(a *app) dashboardDeps {
	return dashboardDeps{
		session:        a.session,
		quotes:         a.quotes,
		orders:         a.orders,
		poller:         a.poller,
		balances:       a.balances,
		networkName:    a.cfg.Network.Name,
		nativeSymbol:   a.cfg.Network.Currency,
		nativeDecimals: a.cfg.Network.Decimals,
		explorerURL:    a.cfg.Network.ExplorerURL,
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// Enter-to-confirm in the dashboard stands in for the wallet popups.
	approve := func(*config.Config) provider.Approver { return provider.AutoApprover{} }

	a, err := openApp(cmd, appOptions{approver: approve, unlock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	deps := dashboardDepsFor(a)
	f := subscribe(deps)
	defer f.Unsubscribe()

	if err := a.session.Start(ctx); err != nil {
		return err
	}
	a.poller.Start(ctx)

	p := tea.NewProgram(newDashboard(ctx, deps, f), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
