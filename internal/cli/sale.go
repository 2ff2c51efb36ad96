package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/network"
	"github.com/yolodolo42/icosale/internal/provider"
	"github.com/yolodolo42/icosale/internal/sale"
	"github.com/yolodolo42/icosale/internal/session"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the wallet and show its balances",
	Long: `Put the wallet on the sale's network (adding the network if the wallet
does not know it), authorize an account and print its ETH and USDT balances.`,
	RunE: runConnect,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sale window, progress and countdown",
	RunE:  runStatus,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Estimate tokens for a payment, or the payment for tokens",
	Example: `  icosale quote --amount 0.5 --currency eth
  icosale quote --tokens 1000 --currency usdt`,
	RunE: runQuote,
}

var buyCmd = &cobra.Command{
	Use:     "buy",
	Short:   "Buy tokens with ETH or USDT",
	Example: `  icosale buy --amount 100 --currency usdt`,
	RunE:    runBuy,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(buyCmd)

	statusCmd.Flags().Bool("watch", false, "keep refreshing and show a live countdown")

	quoteCmd.Flags().String("amount", "", "payment amount to convert into tokens")
	quoteCmd.Flags().String("tokens", "", "token amount to price")
	quoteCmd.Flags().String("currency", "eth", "payment currency: eth or usdt")

	buyCmd.Flags().String("amount", "", "payment amount")
	buyCmd.Flags().String("currency", "eth", "payment currency: eth or usdt")
	buyCmd.Flags().BoolP("yes", "y", false, "approve every wallet prompt without asking")

	connectCmd.Flags().BoolP("yes", "y", false, "approve every wallet prompt without asking")
}

func promptApprover(cmd *cobra.Command) func(*config.Config) provider.Approver {
	yes, _ := cmd.Flags().GetBool("yes")
	return func(cfg *config.Config) provider.Approver {
		return newTerminalApprover(os.Stdin, cmd.OutOrStdout(), cfg.Network.Decimals, cfg.Network.Currency, yes)
	}
}

// connectSession restores an authorized account or asks the wallet for
// one.
func connectSession(ctx context.Context, a *app) (common.Address, error) {
	if err := a.session.Start(ctx); err != nil && !errors.Is(err, session.ErrAlreadyStarted) {
		return common.Address{}, err
	}
	if account, ok := a.session.Account(); ok {
		return account, nil
	}
	return a.session.Connect(ctx)
}

func connectMessage(err error) string {
	switch {
	case errors.Is(err, network.ErrNetworkSwitchRejected):
		return "Network switch was rejected. The sale only runs on the required network."
	case errors.Is(err, network.ErrNetworkMismatch):
		return "Your wallet is on the wrong network."
	case errors.Is(err, session.ErrConnectRejected):
		return "Connection request was rejected."
	case errors.Is(err, session.ErrNoAccounts):
		return "The wallet returned no accounts."
	case errors.Is(err, provider.ErrProviderMissing):
		return "No wallet found. Configure a local keystore or a remote wallet."
	default:
		return err.Error()
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, appOptions{approver: promptApprover(cmd), unlock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	account, err := connectSession(ctx, a)
	if err != nil {
		return errors.New(connectMessage(err))
	}
	state := a.session.State()

	fmt.Fprintf(out, "Connected: %s\n", account.Hex())
	fmt.Fprintf(out, "Network:   %s (chain %s)\n", a.cfg.Network.Name, state.ChainID)

	native, stable, err := a.balances(ctx, account)
	if err != nil {
		fmt.Fprintf(out, "Balances:  unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "%-10s %s\n", a.cfg.Network.Currency+":", chain.FormatBalance(native, a.cfg.Network.Decimals))
	fmt.Fprintf(out, "%-10s %s\n", sale.Stable.Symbol()+":", chain.FormatBalance(stable, sale.Stable.Decimals()))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")

	a, err := openApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	snap := a.poller.Refresh(ctx)
	price, priceErr := a.quotes.TokenPrice(ctx)
	printStatus(out, snap, time.Now())
	if priceErr == nil {
		fmt.Fprintf(out, "Price:     %s %s per token\n", price, sale.Stable.Symbol())
	}
	if !watch {
		return nil
	}

	countdowns := make(chan sale.Countdown, 1)
	snapshots := make(chan sale.Snapshot, 1)
	csub := a.poller.SubscribeCountdown(countdowns)
	defer csub.Unsubscribe()
	ssub := a.poller.SubscribeSnapshots(snapshots)
	defer ssub.Unsubscribe()

	// a.Close stops the poller after the deferred unsubscribes run.
	a.poller.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case s := <-snapshots:
			fmt.Fprintf(out, "\rSold:      %s / %s (%.2f%%)            \n",
				chain.FormatBalance(s.Sold, sale.TokenDecimals),
				chain.FormatBalance(s.HardCap, sale.TokenDecimals),
				s.Progress)
		case c := <-countdowns:
			fmt.Fprintf(out, "\rEnds in:   %-24s", c.String())
			if c.Ended {
				fmt.Fprintln(out)
				return nil
			}
		}
	}
}

func printStatus(out io.Writer, snap sale.Snapshot, now time.Time) {
	if snap.Warning != nil {
		fmt.Fprintf(out, "Warning:   %s\n", sale.UserMessage(snap.Warning))
	}
	if snap.Sold == nil {
		return
	}
	fmt.Fprintf(out, "Phase:     %s\n", sale.DeriveState(now, snap.Start, snap.End))
	fmt.Fprintf(out, "Starts:    %s\n", snap.Start.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "Ends:      %s\n", snap.End.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "Sold:      %s / %s (%.2f%%)\n",
		chain.FormatBalance(snap.Sold, sale.TokenDecimals),
		chain.FormatBalance(snap.HardCap, sale.TokenDecimals),
		snap.Progress)
	fmt.Fprintf(out, "Ends in:   %s\n", sale.CountdownTo(now, snap.End))
}

func runQuote(cmd *cobra.Command, args []string) error {
	amount, _ := cmd.Flags().GetString("amount")
	tokens, _ := cmd.Flags().GetString("tokens")
	currencyFlag, _ := cmd.Flags().GetString("currency")

	if (amount == "") == (tokens == "") {
		return errors.New("pass exactly one of --amount or --tokens")
	}
	currency, err := sale.ParseCurrency(currencyFlag)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	var q sale.Quote
	if amount != "" {
		q = a.quotes.EstimateOutput(ctx, amount, currency)
		fmt.Fprintf(out, "%s %s ≈ %s tokens\n", q.Input, currency.Symbol(), q.Output)
	} else {
		q = a.quotes.EstimateInput(ctx, tokens, currency)
		fmt.Fprintf(out, "%s tokens ≈ %s %s\n", q.Input, q.Output, currency.Symbol())
	}
	if q.Warning != nil {
		fmt.Fprintf(out, "Warning: %s\n", sale.UserMessage(q.Warning))
	}
	return nil
}

func runBuy(cmd *cobra.Command, args []string) error {
	amount, _ := cmd.Flags().GetString("amount")
	currencyFlag, _ := cmd.Flags().GetString("currency")

	currency, err := sale.ParseCurrency(currencyFlag)
	if err != nil {
		return err
	}
	if _, err := chain.ParsePositiveUnits(amount, currency.Decimals()); err != nil {
		return errors.New(sale.UserMessage(err))
	}

	a, err := openApp(cmd, appOptions{approver: promptApprover(cmd), unlock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	account, err := connectSession(ctx, a)
	if err != nil {
		return errors.New(connectMessage(err))
	}

	q := a.quotes.EstimateOutput(ctx, amount, currency)
	fmt.Fprintf(out, "Buying ~%s tokens for %s %s from %s\n", q.Output, amount, currency.Symbol(), account.Hex())
	if currency.NeedsApproval() {
		fmt.Fprintf(out, "The sale contract may first need approval to spend your %s.\n", currency.Symbol())
	}

	result, err := a.orders.Buy(ctx, amount, currency)
	if err != nil {
		return errors.New(sale.UserMessage(err))
	}

	if result.ApprovalTx != nil {
		fmt.Fprintf(out, "Approval:  %s\n", result.ApprovalTx.Hex())
	}
	fmt.Fprintf(out, "Purchase:  %s\n", result.TxHash.Hex())
	if result.Receipt != nil {
		fmt.Fprintf(out, "Mined in block %d\n", result.Receipt.BlockNumber)
	}
	if url := a.cfg.Network.ExplorerURL; url != "" {
		fmt.Fprintf(out, "Explorer:  %s/tx/%s\n", url, result.TxHash.Hex())
	}
	return nil
}
