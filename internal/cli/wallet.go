package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/ui"
	"github.com/yolodolo42/icosale/internal/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets and accounts",
	Long: `Create, import, and list the encrypted keystore accounts the local
wallet signs sale transactions with.`,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new wallet",
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a wallet from private key",
	RunE:  runWalletImport,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all wallets",
	RunE:  runWalletList,
}

var walletUseCmd = &cobra.Command{
	Use:   "use [address]",
	Short: "Choose the account the local wallet signs with",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWalletUse,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletUseCmd)

	walletImportCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")
}

func dataDir() (string, error) {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir, nil
	}
	return config.DefaultDataDir()
}

// openKeystore opens the keystore under the configured data directory.
// It does not need the sale settings, so it skips full config validation.
func openKeystore() (*wallet.Keystore, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	ks, err := wallet.OpenKeystore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}
	return ks, nil
}

func readNewPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}

	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func runWalletCreate(cmd *cobra.Command, args []string) error {
	ks, err := openKeystore()
	if err != nil {
		return err
	}

	password, err := readNewPassword("Enter password for new wallet: ")
	if err != nil {
		return err
	}

	account, err := ks.CreateAccount(password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nWallet created successfully!")
	fmt.Fprintf(out, "Address: %s\n", account.Address.Hex())
	fmt.Fprintf(out, "Keystore: %s\n", account.URL.Path)
	fmt.Fprintln(out, "\nIMPORTANT: Back up your keystore file and remember your password!")

	return nil
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	privateKey, _ := cmd.Flags().GetString("key")

	if privateKey == "" {
		input, err := readPassword("Enter private key (hex): ")
		if err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
		privateKey = strings.TrimSpace(input)
	}

	if privateKey == "" {
		return fmt.Errorf("private key is required")
	}

	ks, err := openKeystore()
	if err != nil {
		return err
	}

	password, err := readNewPassword("Enter password to encrypt wallet: ")
	if err != nil {
		return err
	}

	account, err := ks.ImportKey(privateKey, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nWallet imported successfully!")
	fmt.Fprintf(out, "Address: %s\n", account.Address.Hex())
	fmt.Fprintf(out, "Keystore: %s\n", account.URL.Path)

	return nil
}

func runWalletList(cmd *cobra.Command, args []string) error {
	ks, err := openKeystore()
	if err != nil {
		return err
	}

	accounts := ks.Accounts()
	out := cmd.OutOrStdout()

	if len(accounts) == 0 {
		fmt.Fprintln(out, "No wallets found.")
		fmt.Fprintln(out, "Use 'icosale wallet create' to create a new wallet.")
		return nil
	}

	active := viper.GetString("wallet.address")
	fmt.Fprintf(out, "Found %d wallet(s):\n\n", len(accounts))
	for i, addr := range accounts {
		marker := ""
		if active != "" && common.HexToAddress(active) == addr || active == "" && i == 0 {
			marker = " (active)"
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, addr.Hex(), marker)
	}

	return nil
}

func runWalletUse(cmd *cobra.Command, args []string) error {
	ks, err := openKeystore()
	if err != nil {
		return err
	}

	var address common.Address
	if len(args) == 1 {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid address: %s", args[0])
		}
		address = common.HexToAddress(args[0])
		if !ks.HasAccount(address) {
			return fmt.Errorf("%w: %s", wallet.ErrAccountNotFound, address.Hex())
		}
	} else {
		accounts := ks.Accounts()
		if len(accounts) == 0 {
			return errNoLocalAccount
		}
		chosen, err := pickAccount(accounts, viper.GetString("wallet.address"))
		if err != nil {
			return err
		}
		if chosen == nil {
			return nil
		}
		address = *chosen
	}

	viper.Set("wallet.address", address.Hex())
	if err := writeConfig(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active wallet: %s\n", address.Hex())
	return nil
}

// writeConfig saves viper's settings to the loaded config file, creating
// $DATA_DIR/config.yaml when there is none.
func writeConfig() error {
	if viper.ConfigFileUsed() != "" {
		return viper.WriteConfig()
	}
	dir, err := dataDir()
	if err != nil {
		return err
	}
	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

// accountPicker runs a ui.Selector full screen.
type accountPicker struct {
	selector ui.Selector
}

func (p accountPicker) Init() tea.Cmd { return nil }

func (p accountPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyCtrlC {
		p.selector.Update(tea.KeyMsg{Type: tea.KeyEsc})
		return p, tea.Quit
	}
	p.selector.Update(msg)
	if !p.selector.Active() {
		return p, tea.Quit
	}
	return p, nil
}

func (p accountPicker) View() string {
	return p.selector.View()
}

func pickAccount(accounts []common.Address, active string) (*common.Address, error) {
	items := make([]ui.SelectorItem, len(accounts))
	for i, a := range accounts {
		items[i] = ui.SelectorItem{
			ID:      a.Hex(),
			Label:   a.Hex(),
			Current: active != "" && common.HexToAddress(active) == a,
		}
		if items[i].Current {
			items[i].Description = "(active)"
		}
	}

	final, err := tea.NewProgram(accountPicker{selector: ui.NewSelector("Select the signing account", items)}).Run()
	if err != nil {
		return nil, err
	}
	picked := final.(accountPicker).selector
	if picked.Cancelled() {
		return nil, nil
	}
	addr := common.HexToAddress(picked.Selected())
	return &addr, nil
}
