package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/icosale/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List purchases and approvals sent from this machine",
	Long: `List the approval and purchase transactions recorded locally.
Recording is enabled with history.enabled in the config file.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("account", "", "only show records for this account")
	historyCmd.Flags().Int("limit", 20, "maximum number of records")
}

func runHistory(cmd *cobra.Command, args []string) error {
	account, _ := cmd.Flags().GetString("account")
	limit, _ := cmd.Flags().GetInt("limit")

	if account != "" {
		if !common.IsHexAddress(account) {
			return fmt.Errorf("invalid address: %s", account)
		}
		account = common.HexToAddress(account).Hex()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), account, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No purchases recorded.")
		if !cfg.History.Enabled {
			fmt.Fprintln(out, "Set history.enabled: true in the config file to record purchases.")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tAMOUNT\tSTATUS\tTX")
	for _, r := range records {
		tx := r.TxHash
		if tx == "" {
			tx = "-"
		}
		status := string(r.Status)
		if r.Error != "" {
			status += " (" + r.Error + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Kind, r.Amount, r.Currency, status, tx)
	}
	return w.Flush()
}
