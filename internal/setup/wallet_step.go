package setup

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/yolodolo42/icosale/internal/wallet"
)

// createWallet creates a new keystore account, or imports the entered key,
// encrypted with the entered password.
func (m WizardModel) createWallet() tea.Cmd {
	password := m.passwordInput.Value()
	key := strings.TrimSpace(m.keyInput.Value())

	return func() tea.Msg {
		ks, err := wallet.OpenKeystore(m.dataDir)
		if err != nil {
			return walletCreatedMsg{err: err}
		}

		if key != "" {
			account, err := ks.ImportKey(key, password)
			if err != nil {
				return walletCreatedMsg{err: err}
			}
			return walletCreatedMsg{address: account.Address.Hex()}
		}

		account, err := ks.CreateAccount(password)
		if err != nil {
			return walletCreatedMsg{err: err}
		}
		return walletCreatedMsg{address: account.Address.Hex()}
	}
}
