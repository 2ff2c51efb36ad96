package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainConfig describes an EVM chain well enough to connect to it and to ask
// a wallet to add it.
// Invariant: ChainID and ChainIDInt must always represent the same value.
// ChainIDInt exists for YAML serialization (big.Int doesn't serialize cleanly).
type ChainConfig struct {
	Name           string   `yaml:"name"`
	ChainID        *big.Int `yaml:"-"`
	ChainIDInt     int64    `yaml:"chain_id"`
	RPCURLs        []string `yaml:"rpc_urls"`
	ExplorerURL    string   `yaml:"explorer_url"`
	NativeCurrency string   `yaml:"native_currency"`
	NativeDecimals uint8    `yaml:"native_decimals"`
	IsTestnet      bool     `yaml:"is_testnet"`
}

// ChainIDHex returns the chain id in the 0x-prefixed form wallets expect.
func (c *ChainConfig) ChainIDHex() string {
	return hexutil.EncodeBig(c.ChainID)
}

// NewChainConfig fills ChainID from ChainIDInt and applies the 18-decimal
// native currency default.
func NewChainConfig(name string, id int64, rpcURLs []string, explorer, symbol string) *ChainConfig {
	return &ChainConfig{
		Name:           name,
		ChainID:        big.NewInt(id),
		ChainIDInt:     id,
		RPCURLs:        rpcURLs,
		ExplorerURL:    explorer,
		NativeCurrency: symbol,
		NativeDecimals: 18,
	}
}

// Validate checks the descriptor is usable for wallet_addEthereumChain.
func (c *ChainConfig) Validate() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain %q: chain id must be positive", c.Name)
	}
	if c.ChainID.Int64() != c.ChainIDInt {
		return fmt.Errorf("chain %q: chain id mismatch", c.Name)
	}
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("chain %q: at least one rpc url is required", c.Name)
	}
	return nil
}

// DefaultChains returns the chains known out of the box.
func DefaultChains() map[string]*ChainConfig {
	return map[string]*ChainConfig{
		"ethereum": {
			Name:           "Ethereum Mainnet",
			ChainID:        big.NewInt(1),
			ChainIDInt:     1,
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: "ETH",
			NativeDecimals: 18,
		},
		"sepolia": {
			Name:           "Sepolia",
			ChainID:        big.NewInt(11155111),
			ChainIDInt:     11155111,
			RPCURLs:        []string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"},
			ExplorerURL:    "https://sepolia.etherscan.io",
			NativeCurrency: "ETH",
			NativeDecimals: 18,
			IsTestnet:      true,
		},
		"base-sepolia": {
			Name:           "Base Sepolia Testnet",
			ChainID:        big.NewInt(84532),
			ChainIDInt:     84532,
			RPCURLs:        []string{"https://sepolia.base.org"},
			ExplorerURL:    "https://sepolia.basescan.org",
			NativeCurrency: "ETH",
			NativeDecimals: 18,
			IsTestnet:      true,
		},
	}
}
