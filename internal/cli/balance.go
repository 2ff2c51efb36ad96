package cli

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/sale"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show ETH, USDT and allowance for an address",
	Long: `Display the payment balances of an address on the sale's network and
how much USDT the sale contract may currently spend for it.`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().String("address", "", "Address to check (uses the active wallet if not specified)")
}

func runBalance(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")

	var address common.Address
	if addressFlag != "" {
		if !common.IsHexAddress(addressFlag) {
			return fmt.Errorf("invalid address: %s", addressFlag)
		}
		address = common.HexToAddress(addressFlag)
	} else {
		ks, err := openKeystore()
		if err != nil {
			return fmt.Errorf("no address specified and failed to load wallets: %w", err)
		}
		accounts := ks.Accounts()
		if len(accounts) == 0 {
			return fmt.Errorf("no address specified and no wallets found. Use --address or create a wallet first")
		}
		address = accounts[0]
	}

	a, err := openApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	native, stable, err := a.balances(ctx, address)
	if err != nil {
		return err
	}
	allowance, err := a.gateway.StableToken(address).Allowance(ctx, address, a.gateway.SaleAddress())
	if err != nil {
		return fmt.Errorf("allowance: %w", err)
	}

	fmt.Fprintf(out, "Balances for %s on %s\n", address.Hex(), a.cfg.Network.Name)
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")
	row := func(label string, v *big.Int, decimals uint8, symbol string) {
		// Add visual indicator for zero vs non-zero balances
		indicator := "○"
		if v.Sign() > 0 {
			indicator = "●"
		}
		fmt.Fprintf(out, "%s %-12s  %s %s\n", indicator, label, chain.FormatBalance(v, decimals), symbol)
	}
	row("native", native, a.cfg.Network.Decimals, a.cfg.Network.Currency)
	row("stable", stable, sale.Stable.Decimals(), sale.Stable.Symbol())
	row("allowance", allowance, sale.Stable.Decimals(), sale.Stable.Symbol())
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")
	return nil
}
