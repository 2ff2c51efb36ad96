// Package config loads icosale settings from file, environment and flags.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/chain"
)

const (
	EnvPrefix = "ICOSALE"

	WalletLocal  = "local"
	WalletRemote = "remote"
)

var validate = validator.New()

type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	Network  NetworkConfig  `mapstructure:"network"`
	Contract ContractConfig `mapstructure:"contract"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Poll     PollConfig     `mapstructure:"poll"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	History  HistoryConfig  `mapstructure:"history"`
}

// NetworkConfig is the chain the sale lives on, in the shape wallets need
// to add it.
type NetworkConfig struct {
	Name        string   `mapstructure:"name" validate:"required"`
	ChainID     int64    `mapstructure:"chain_id" validate:"gt=0"`
	RPCURLs     []string `mapstructure:"rpc_urls" validate:"required,min=1,dive,url"`
	ExplorerURL string   `mapstructure:"explorer_url" validate:"omitempty,url"`
	Currency    string   `mapstructure:"currency" validate:"required"`
	Decimals    uint8    `mapstructure:"decimals" validate:"gt=0"`
}

type ContractConfig struct {
	Sale        string `mapstructure:"sale" validate:"required,eth_addr"`
	StableToken string `mapstructure:"stable_token" validate:"required,eth_addr"`
}

type WalletConfig struct {
	Mode     string `mapstructure:"mode" validate:"oneof=local remote"`
	Address  string `mapstructure:"address" validate:"omitempty,eth_addr"`
	RPCURL   string `mapstructure:"rpc_url" validate:"omitempty,url"`
	MaxPerTx string `mapstructure:"max_per_tx" validate:"omitempty,numeric"`
}

type PollConfig struct {
	Refresh time.Duration `mapstructure:"refresh" validate:"gt=0"`
	Tick    time.Duration `mapstructure:"tick" validate:"gt=0"`
	Receipt time.Duration `mapstructure:"receipt" validate:"gt=0"`
	Events  time.Duration `mapstructure:"events" validate:"gt=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultDataDir is $HOME/.icosale.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".icosale"), nil
}

// Prepare registers defaults and environment lookup (ICOSALE_NETWORK_CHAIN_ID
// for network.chain_id) on v.
func Prepare(v *viper.Viper) {
	sepolia := chain.DefaultChains()["sepolia"]

	v.SetDefault("data_dir", "")
	v.SetDefault("network.name", sepolia.Name)
	v.SetDefault("network.chain_id", sepolia.ChainIDInt)
	v.SetDefault("network.rpc_urls", sepolia.RPCURLs)
	v.SetDefault("network.explorer_url", sepolia.ExplorerURL)
	v.SetDefault("network.currency", sepolia.NativeCurrency)
	v.SetDefault("network.decimals", sepolia.NativeDecimals)
	v.SetDefault("contract.sale", "")
	v.SetDefault("contract.stable_token", "")
	v.SetDefault("wallet.mode", WalletLocal)
	v.SetDefault("wallet.address", "")
	v.SetDefault("wallet.rpc_url", "")
	v.SetDefault("wallet.max_per_tx", "")
	v.SetDefault("poll.refresh", "30s")
	v.SetDefault("poll.tick", "1s")
	v.SetDefault("poll.receipt", "2s")
	v.SetDefault("poll.events", "2s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("history.enabled", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Env values for list keys arrive as one string.
	if len(cfg.Network.RPCURLs) == 1 && strings.Contains(cfg.Network.RPCURLs[0], ",") {
		cfg.Network.RPCURLs = strings.Split(cfg.Network.RPCURLs[0], ",")
	}
	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if cfg.Wallet.Mode == WalletRemote && cfg.Wallet.RPCURL == "" {
		return nil, fmt.Errorf("validation failed: wallet.rpc_url is required when wallet.mode is remote")
	}
	return &cfg, nil
}

// RequiredChain is the network the wallet must be on.
func (c *Config) RequiredChain() *chain.ChainConfig {
	n := c.Network
	cc := chain.NewChainConfig(n.Name, n.ChainID, n.RPCURLs, n.ExplorerURL, n.Currency)
	cc.NativeDecimals = n.Decimals
	return cc
}

// ChainKey is the name the required network is registered under in the
// chain client.
func (c *Config) ChainKey() string {
	return strings.ToLower(strings.ReplaceAll(c.Network.Name, " ", "-"))
}

func (c *Config) SaleAddress() common.Address {
	return common.HexToAddress(c.Contract.Sale)
}

func (c *Config) StableAddress() common.Address {
	return common.HexToAddress(c.Contract.StableToken)
}

// MaxPerTxWei is the local wallet's per-transaction spend cap, nil when
// unset.
func (c *Config) MaxPerTxWei() (*big.Int, error) {
	if c.Wallet.MaxPerTx == "" {
		return nil, nil
	}
	return chain.ParseUnits(c.Wallet.MaxPerTx, c.Network.Decimals)
}
