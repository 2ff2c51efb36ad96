package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "icosale",
		Short: "Terminal client for an ICO token sale",
		Long: `icosale connects a wallet to a token sale contract.

It shows the sale window and progress, quotes token amounts for ETH or
USDT, and submits purchases (with the USDT approval step when needed)
after confirming every wallet action with you.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// First run: ask for the sale contracts and a wallet.
			ready, err := ensureSetup(cmd)
			if err != nil || !ready {
				return err
			}
			return runDashboard(cmd, args)
		},
	}
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	config.Prepare(viper.GetViper())

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.icosale/config.yaml)")
	rootCmd.PersistentFlags().String("sale", "", "sale contract address")
	rootCmd.PersistentFlags().String("stable-token", "", "stable token (USDT) contract address")
	rootCmd.PersistentFlags().String("wallet", "", "wallet mode: local or remote")
	rootCmd.PersistentFlags().String("wallet-rpc", "", "remote wallet JSON-RPC endpoint")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	bind := map[string]string{
		"contract.sale":         "sale",
		"contract.stable_token": "stable-token",
		"wallet.mode":           "wallet",
		"wallet.rpc_url":        "wallet-rpc",
		"log.level":             "log-level",
		"metrics.addr":          "metrics-addr",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.DefaultDataDir()
		cobra.CheckErr(err)

		if err := os.MkdirAll(dir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(dir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.DataDir, "icosale.log")
	}
	return cfg, nil
}

// openApp loads the config and wires the components for one command.
func openApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, opts)
}
