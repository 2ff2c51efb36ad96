package setup

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/ui"
	"golang.org/x/term"
)

// WizardStep represents the current step in the wizard
type WizardStep int

const (
	StepWelcome WizardStep = iota
	StepContracts
	StepWalletMode
	StepRemoteURL
	StepWalletChoice
	StepWalletKey
	StepWalletPassword
	StepComplete
)

const totalSteps = 3 // Contracts, Wallet, Complete

const (
	fieldSale = iota
	fieldStable
)

const (
	choiceExisting = "existing"
	choiceCreate   = "create"
	choiceImport   = "import"
	choiceSkip     = "skip"
)

// Result contains the answers collected by the wizard
type Result struct {
	Sale          string
	StableToken   string
	WalletMode    string
	RemoteURL     string
	WalletAddress string
	WalletCreated bool
	Cancelled     bool
}

// WizardModel is the main wizard Bubbletea model
type WizardModel struct {
	step     WizardStep
	status   *Status
	dataDir  string
	chainID  *big.Int
	network  string
	quitting bool

	// Contracts step
	saleInput     textinput.Model
	stableInput   textinput.Model
	contractField int
	contractError string

	// Wallet mode step
	modeSelector ui.Selector
	walletMode   string

	// Remote wallet step
	remoteInput textinput.Model
	probing     bool
	remoteError string
	remoteNote  string

	// Local wallet step
	walletSelector ui.Selector
	keyInput       textinput.Model
	passwordInput  textinput.Model
	confirmInput   textinput.Model
	passwordStep   int // 0=enter, 1=confirm
	walletError    string
	walletCreated  bool
	walletAddress  string

	// UI
	spinner  spinner.Model
	progress progress.Model

	// Result
	result *Result
}

// Message types
type remoteProbedMsg struct {
	chainID *big.Int
	err     error
}

type walletCreatedMsg struct {
	address string
	err     error
}

func modeSelectorItems(current string) []ui.SelectorItem {
	return []ui.SelectorItem{
		{
			ID:          config.WalletLocal,
			Label:       "Local keystore",
			Description: "icosale signs with an encrypted key on this machine",
			Current:     current != config.WalletRemote,
		},
		{
			ID:          config.WalletRemote,
			Label:       "Remote wallet",
			Description: "a wallet that serves JSON-RPC (http, ws or ipc)",
			Current:     current == config.WalletRemote,
		},
	}
}

func walletSelectorItems(existing string) []ui.SelectorItem {
	items := make([]ui.SelectorItem, 0, 4)
	if existing != "" {
		items = append(items, ui.SelectorItem{
			ID:          choiceExisting,
			Label:       "Use " + shortAddress(existing),
			Description: "already in the keystore",
			Current:     true,
		})
	}
	return append(items,
		ui.SelectorItem{ID: choiceCreate, Label: "Create a new wallet"},
		ui.SelectorItem{ID: choiceImport, Label: "Import a private key"},
		ui.SelectorItem{ID: choiceSkip, Label: "Continue without wallet", Description: "quotes and status only"},
	)
}

func newInput(placeholder string, width int, secret bool) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.Width = width
	in.CharLimit = 200
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return in
}

// NewWizard creates a new wizard model, prefilled from the settings in v
func NewWizard(v *viper.Viper, dataDir string) *WizardModel {
	status := DetectStatus(v, dataDir)

	// Spinner
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	// Progress bar
	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	saleInput := newInput("0x... sale contract", 44, false)
	saleInput.SetValue(status.Sale)
	stableInput := newInput("0x... USDT contract", 44, false)
	stableInput.SetValue(status.StableToken)
	remoteInput := newInput("http://127.0.0.1:8545", 44, false)
	remoteInput.SetValue(status.RemoteURL)

	existing := ""
	if status.WalletMode != config.WalletRemote {
		existing = status.WalletAddress
	}

	return &WizardModel{
		step:           StepWelcome,
		status:         status,
		dataDir:        dataDir,
		chainID:        big.NewInt(v.GetInt64("network.chain_id")),
		network:        v.GetString("network.name"),
		saleInput:      saleInput,
		stableInput:    stableInput,
		modeSelector:   ui.NewSelector("How will you sign purchases?", modeSelectorItems(status.WalletMode)),
		remoteInput:    remoteInput,
		walletSelector: ui.NewSelector("Set up wallet", walletSelectorItems(existing)),
		keyInput:       newInput("Private key (hex)", 66, true),
		passwordInput:  newInput("Enter password (8+ chars)", 40, true),
		confirmInput:   newInput("Confirm password", 40, true),
		spinner:        sp,
		progress:       prog,
	}
}

// Init initializes the wizard
func (m WizardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update handles messages
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keys (don't swallow Esc; selectors use it).
		if msg.Type == tea.KeyCtrlC {
			m.result = &Result{Cancelled: true}
			m.quitting = true
			return m, tea.Quit
		}

		// Step-specific handling
		switch m.step {
		case StepWelcome:
			if msg.Type == tea.KeyEnter {
				m.step = StepContracts
				m.contractField = fieldSale
				m.stableInput.Blur()
				cmd := m.saleInput.Focus()
				return m, cmd
			}
			return m, nil

		case StepContracts:
			switch msg.Type {
			case tea.KeyEsc:
				m.contractError = ""
				m.step = StepWelcome
				return m, nil
			case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
				cmd := m.focusContract(1 - m.contractField)
				return m, cmd
			case tea.KeyEnter:
				return m.updateContracts()
			}
			// Fall through to let input update happen

		case StepWalletMode:
			return m.updateWalletMode(msg)

		case StepRemoteURL:
			if m.probing {
				return m, nil
			}
			if msg.Type == tea.KeyEsc {
				m.remoteInput.Blur()
				m.remoteError = ""
				m.modeSelector = ui.NewSelector("How will you sign purchases?", modeSelectorItems(config.WalletRemote))
				m.step = StepWalletMode
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				if strings.TrimSpace(m.remoteInput.Value()) == "" {
					m.remoteError = "Wallet URL is required"
					return m, nil
				}
				m.probing = true
				m.remoteError = ""
				return m, m.probeRemote()
			}
			// Fall through to let input update happen

		case StepWalletChoice:
			return m.updateWalletChoice(msg)

		case StepWalletKey:
			if msg.Type == tea.KeyEsc {
				m.keyInput.Blur()
				m.keyInput.Reset()
				m.walletError = ""
				m.walletSelector = ui.NewSelector("Set up wallet", walletSelectorItems(m.existingAccount()))
				m.step = StepWalletChoice
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				return m.updateWalletKey()
			}
			// Fall through to let input update happen

		case StepWalletPassword:
			if msg.Type == tea.KeyEsc {
				m.passwordStep = 0
				m.walletError = ""
				m.passwordInput.Reset()
				m.confirmInput.Reset()
				if m.keyInput.Value() != "" {
					m.step = StepWalletKey
					cmd := m.keyInput.Focus()
					return m, cmd
				}
				m.walletSelector = ui.NewSelector("Set up wallet", walletSelectorItems(m.existingAccount()))
				m.step = StepWalletChoice
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				return m.updateWalletPassword()
			}
			// Fall through to let input update happen

		case StepComplete:
			if msg.Type == tea.KeyEnter {
				m.result = m.collect()
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.progress.Width = max(10, min(40, msg.Width-20))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case remoteProbedMsg:
		m.probing = false
		if msg.err != nil {
			m.remoteError = formatRemoteError(msg.err)
			return m, nil
		}
		m.remoteNote = ""
		if m.chainID.Sign() > 0 && msg.chainID.Cmp(m.chainID) != 0 {
			m.remoteNote = fmt.Sprintf("Wallet is on chain %s; icosale will ask it to switch to %s.", msg.chainID, m.network)
		}
		m.remoteInput.Blur()
		m.step = StepComplete
		return m, nil

	case walletCreatedMsg:
		if msg.err != nil {
			m.walletError = msg.err.Error()
			m.passwordStep = 0
			m.passwordInput.Reset()
			m.confirmInput.Reset()
			cmd := m.passwordInput.Focus()
			return m, cmd
		}
		m.walletCreated = true
		m.walletAddress = msg.address
		m.step = StepComplete
		return m, nil
	}

	// Update text inputs
	var cmd tea.Cmd
	switch m.step {
	case StepContracts:
		if m.contractField == fieldSale {
			m.saleInput, cmd = m.saleInput.Update(msg)
		} else {
			m.stableInput, cmd = m.stableInput.Update(msg)
		}
	case StepRemoteURL:
		if !m.probing {
			m.remoteInput, cmd = m.remoteInput.Update(msg)
		}
	case StepWalletKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
	case StepWalletPassword:
		if m.passwordStep == 0 {
			m.passwordInput, cmd = m.passwordInput.Update(msg)
		} else {
			m.confirmInput, cmd = m.confirmInput.Update(msg)
		}
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *WizardModel) focusContract(field int) tea.Cmd {
	m.contractField = field
	if field == fieldSale {
		m.stableInput.Blur()
		return m.saleInput.Focus()
	}
	m.saleInput.Blur()
	return m.stableInput.Focus()
}

// validAddress reports whether s is a non-zero hex address.
func validAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}

func (m WizardModel) updateContracts() (tea.Model, tea.Cmd) {
	sale := strings.TrimSpace(m.saleInput.Value())
	stable := strings.TrimSpace(m.stableInput.Value())

	if !validAddress(sale) {
		m.contractError = "Sale contract must be a 0x address"
		cmd := m.focusContract(fieldSale)
		return m, cmd
	}
	if m.contractField == fieldSale {
		m.contractError = ""
		cmd := m.focusContract(fieldStable)
		return m, cmd
	}
	if !validAddress(stable) {
		m.contractError = "USDT contract must be a 0x address"
		return m, nil
	}
	if common.HexToAddress(sale) == common.HexToAddress(stable) {
		m.contractError = "Sale and USDT contracts must differ"
		return m, nil
	}

	m.saleInput.SetValue(common.HexToAddress(sale).Hex())
	m.stableInput.SetValue(common.HexToAddress(stable).Hex())
	m.saleInput.Blur()
	m.stableInput.Blur()
	m.contractError = ""
	m.step = StepWalletMode
	return m, nil
}

func (m WizardModel) updateWalletMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	_, cmd := m.modeSelector.Update(msg)
	if cmd != nil {
		return m, cmd
	}

	if m.modeSelector.Active() {
		return m, nil
	}

	if m.modeSelector.Cancelled() {
		m.modeSelector = ui.NewSelector("How will you sign purchases?", modeSelectorItems(m.walletMode))
		m.step = StepContracts
		cmd := m.focusContract(fieldSale)
		return m, cmd
	}

	m.walletMode = m.modeSelector.Selected()
	if m.walletMode == config.WalletRemote {
		m.step = StepRemoteURL
		cmd := m.remoteInput.Focus()
		return m, cmd
	}

	m.walletSelector = ui.NewSelector("Set up wallet", walletSelectorItems(m.existingAccount()))
	m.step = StepWalletChoice
	return m, nil
}

func (m WizardModel) updateWalletChoice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	_, cmd := m.walletSelector.Update(msg)
	if cmd != nil {
		return m, cmd
	}

	if m.walletSelector.Active() {
		return m, nil
	}

	if m.walletSelector.Cancelled() {
		m.modeSelector = ui.NewSelector("How will you sign purchases?", modeSelectorItems(config.WalletLocal))
		m.step = StepWalletMode
		return m, nil
	}

	m.walletError = ""
	switch m.walletSelector.Selected() {
	case choiceExisting:
		m.walletAddress = m.existingAccount()
		m.step = StepComplete
		return m, nil
	case choiceCreate:
		m.keyInput.Reset()
		m.passwordStep = 0
		m.step = StepWalletPassword
		cmd := m.passwordInput.Focus()
		return m, cmd
	case choiceImport:
		m.step = StepWalletKey
		cmd := m.keyInput.Focus()
		return m, cmd
	default:
		m.walletAddress = ""
		m.step = StepComplete
		return m, nil
	}
}

func (m WizardModel) updateWalletKey() (tea.Model, tea.Cmd) {
	key := strings.TrimPrefix(strings.TrimSpace(m.keyInput.Value()), "0x")
	if _, err := crypto.HexToECDSA(key); err != nil {
		m.walletError = "Not a valid private key"
		return m, nil
	}
	m.walletError = ""
	m.keyInput.Blur()
	m.passwordStep = 0
	m.step = StepWalletPassword
	cmd := m.passwordInput.Focus()
	return m, cmd
}

func (m WizardModel) updateWalletPassword() (tea.Model, tea.Cmd) {
	if m.passwordStep == 0 {
		if len(m.passwordInput.Value()) < 8 {
			m.walletError = "Password must be at least 8 characters"
			return m, nil
		}
		m.passwordStep = 1
		m.walletError = ""
		m.passwordInput.Blur()
		cmd := m.confirmInput.Focus()
		return m, cmd
	}
	if m.passwordInput.Value() != m.confirmInput.Value() {
		m.walletError = "Passwords do not match. Try again."
		m.confirmInput.Reset()
		cmd := m.confirmInput.Focus()
		return m, cmd
	}
	return m, m.createWallet()
}

func (m WizardModel) existingAccount() string {
	if m.status.WalletMode == config.WalletRemote {
		return ""
	}
	return m.status.WalletAddress
}

func (m WizardModel) collect() *Result {
	mode := m.walletMode
	if mode == "" {
		mode = config.WalletLocal
	}
	r := &Result{
		Sale:          m.saleInput.Value(),
		StableToken:   m.stableInput.Value(),
		WalletMode:    mode,
		WalletAddress: m.walletAddress,
		WalletCreated: m.walletCreated,
	}
	if mode == config.WalletRemote {
		r.RemoteURL = strings.TrimSpace(m.remoteInput.Value())
		r.WalletAddress = ""
	}
	return r
}

// formatRemoteError returns a user-friendly error message
func formatRemoteError(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"):
		return "Could not reach the wallet. Check the URL and that it is running."
	case strings.Contains(errStr, "no known transport"):
		return "Use an http://, ws:// URL or an ipc socket path."
	case strings.Contains(errStr, "401"), strings.Contains(errStr, "403"):
		return "The wallet refused the connection."
	}

	// Truncate long errors
	if len(errStr) > 60 {
		return errStr[:57] + "..."
	}
	return errStr
}

// View renders the wizard
func (m WizardModel) View() string {
	if m.quitting {
		if m.result != nil && m.result.Cancelled {
			return DimStyle.Render("\n  Setup cancelled.\n\n")
		}
		return ""
	}

	var b strings.Builder

	// Add progress bar for all steps except welcome and complete
	if m.step > StepWelcome && m.step < StepComplete {
		b.WriteString("\n")
		b.WriteString(m.renderProgress())
		b.WriteString("\n")
	}

	switch m.step {
	case StepWelcome:
		b.WriteString(m.viewWelcome())
	case StepContracts:
		b.WriteString(m.viewContracts())
	case StepWalletMode:
		b.WriteString("\n" + m.modeSelector.View())
	case StepRemoteURL:
		b.WriteString(m.viewRemoteURL())
	case StepWalletChoice:
		b.WriteString(m.viewWalletChoice())
	case StepWalletKey:
		b.WriteString(m.viewWalletKey())
	case StepWalletPassword:
		b.WriteString(m.viewWalletPassword())
	case StepComplete:
		b.WriteString(m.viewComplete())
	}

	return b.String()
}

func (m WizardModel) renderProgress() string {
	var currentStep int
	switch m.step {
	case StepContracts:
		currentStep = 1
	case StepWalletMode, StepRemoteURL, StepWalletChoice, StepWalletKey, StepWalletPassword:
		currentStep = 2
	case StepComplete:
		currentStep = 3
	}

	percent := float64(currentStep) / float64(totalSteps)
	bar := m.progress.ViewAs(percent)

	labels := "  Contracts     Wallet       Ready"
	return fmt.Sprintf("  %s\n%s", bar, DimStyle.Render(labels))
}

func (m WizardModel) viewWelcome() string {
	var b strings.Builder
	b.WriteString("\n\n")

	body := ui.TitleStyle.Render("Welcome to icosale") + "\n" +
		SubtitleStyle.Render("Buy sale tokens from your terminal") + "\n\n"
	if m.status.HasSale {
		body += Checkmark + " Sale " + shortAddress(m.status.Sale) + " is configured.\n" +
			"  Press Enter to review it."
	} else {
		body += fmt.Sprintf("You need the sale and USDT contract addresses\non %s to get started.", m.network)
	}
	b.WriteString(BoxStyle.Render(body))
	b.WriteString("\n\n")
	b.WriteString(ui.HelpStyle.Render("  Press Enter to continue..."))
	return b.String()
}

func (m WizardModel) viewContracts() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(ui.TitleStyle.Render("  Sale contracts"))
	b.WriteString("\n\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  Both contracts must be deployed on %s.\n\n", m.network)))

	b.WriteString("  " + FieldStyle.Render("Sale") + m.saleInput.View() + "\n")
	b.WriteString("  " + FieldStyle.Render("USDT") + m.stableInput.View() + "\n")

	if m.contractError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ui.ErrorStyle.Render(ui.SymbolCross+" "+m.contractError)))
	}

	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("  Enter to continue • Tab switch field • Esc back"))
	return b.String()
}

func (m WizardModel) viewRemoteURL() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(ui.TitleStyle.Render("  Remote wallet"))
	b.WriteString("\n\n")
	b.WriteString(SubtitleStyle.Render("  The wallet approves each connection, network switch and purchase.\n\n"))

	b.WriteString("  " + FieldStyle.Render("Endpoint") + m.remoteInput.View() + "\n")

	if m.probing {
		b.WriteString(fmt.Sprintf("\n  %s Contacting wallet...\n", m.spinner.View()))
	} else if m.remoteError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ui.ErrorStyle.Render(ui.SymbolCross+" "+m.remoteError)))
	}

	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("  Enter to test • Esc back"))
	return b.String()
}

func (m WizardModel) viewWalletChoice() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("  A local wallet lets you:\n"))
	b.WriteString(DimStyle.Render("  • Check your ETH and USDT balances\n"))
	b.WriteString(DimStyle.Render("  • Approve USDT spending\n"))
	b.WriteString(DimStyle.Render("  • Buy tokens\n\n"))
	b.WriteString(m.walletSelector.View())
	if m.walletError != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", ui.ErrorStyle.Render(ui.SymbolCross+" "+m.walletError)))
	}
	return b.String()
}

func (m WizardModel) viewWalletKey() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(ui.TitleStyle.Render("  Import Private Key"))
	b.WriteString("\n\n")
	b.WriteString(DimStyle.Render("  The key is encrypted into the keystore and never written in plain text.\n\n"))

	b.WriteString("  ")
	b.WriteString(m.keyInput.View())
	b.WriteString("\n")

	if m.walletError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ui.ErrorStyle.Render(ui.SymbolCross+" "+m.walletError)))
	}

	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("  Enter to continue • Esc back"))
	return b.String()
}

func (m WizardModel) viewWalletPassword() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(ui.TitleStyle.Render("  Create Wallet Password"))
	b.WriteString("\n\n")

	b.WriteString(DimStyle.Render("  This encrypts your wallet on disk.\n"))
	b.WriteString(DimStyle.Render("  Requirements: 8+ characters\n\n"))

	if m.passwordStep == 0 {
		b.WriteString("  ")
		b.WriteString(m.passwordInput.View())
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("  Password: %s\n\n", ui.SuccessStyle.Render(ui.SymbolCheck+" set")))
		b.WriteString("  ")
		b.WriteString(m.confirmInput.View())
		b.WriteString("\n")
	}

	if m.walletError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ui.ErrorStyle.Render(ui.SymbolCross+" "+m.walletError)))
	}

	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("  Enter to continue • Esc back"))
	return b.String()
}

func (m WizardModel) viewComplete() string {
	var b strings.Builder
	b.WriteString("\n\n")

	r := m.collect()
	walletInfo := DimStyle.Render("Not configured")
	switch {
	case r.WalletMode == config.WalletRemote:
		walletInfo = "remote " + r.RemoteURL
	case r.WalletAddress != "":
		walletInfo = shortAddress(r.WalletAddress)
	}

	content := fmt.Sprintf(
		"%s\n\n"+
			"Network: %s\n"+
			"Sale:    %s\n"+
			"USDT:    %s\n"+
			"Wallet:  %s\n",
		ui.TitleStyle.Render("You're all set!"),
		m.network,
		shortAddress(r.Sale),
		shortAddress(r.StableToken),
		walletInfo,
	)
	if m.remoteNote != "" {
		content += "\n" + ui.WarningStyle.Render(ui.SymbolWarning+" "+m.remoteNote) + "\n"
	}
	content += fmt.Sprintf("\n%s\n  %s\n  %s\n  %s",
		DimStyle.Render("Try these:"),
		"icosale status",
		"icosale quote --amount 0.1",
		"icosale buy --amount 100 --currency usdt",
	)

	b.WriteString(BoxStyle.Render(content))
	b.WriteString("\n\n")
	b.WriteString(ui.HelpStyle.Render("  Press Enter to save and open the dashboard..."))
	return b.String()
}

func shortAddress(addr string) string {
	if len(addr) > 10 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}

// RunWizard runs the setup wizard and saves its answers to the config
// file. Unless force is set, it returns without asking when the sale is
// already configured.
func RunWizard(v *viper.Viper, dataDir string, force bool) (*Result, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m := NewWizard(v, dataDir)

	// Check if already fully configured
	if !force && m.status.IsComplete {
		return &Result{
			Sale:          m.status.Sale,
			StableToken:   m.status.StableToken,
			WalletMode:    m.status.WalletMode,
			RemoteURL:     m.status.RemoteURL,
			WalletAddress: m.status.WalletAddress,
		}, nil
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	result := finalModel.(WizardModel).result
	if result == nil || result.Cancelled {
		return result, nil
	}
	if err := Save(v, dataDir, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PrintEnvInstructions prints setup instructions for non-interactive environments
func PrintEnvInstructions(w io.Writer) {
	fmt.Fprintln(w, "icosale needs the sale contract addresses to run.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Set them with environment variables:")
	fmt.Fprintf(w, "  %s_CONTRACT_SALE=0x...\n", config.EnvPrefix)
	fmt.Fprintf(w, "  %s_CONTRACT_STABLE_TOKEN=0x...\n", config.EnvPrefix)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "or the --sale and --stable-token flags, or run icosale setup interactively.")
}

// IsInteractive returns true if running in a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
