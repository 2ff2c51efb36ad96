package chain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrUnknownChain is returned for chain names the client has no config for.
var ErrUnknownChain = errors.New("unknown chain")

const (
	dialTimeout  = 10 * time.Second
	probeTimeout = 5 * time.Second
)

// Client manages ethclient connections to the chains a local wallet knows.
// Chains are keyed by name; ChainByID maps wallet chain ids back to names.
type Client struct {
	mu     sync.RWMutex
	chains map[string]*ChainConfig
	nodes  map[string]*ethclient.Client
}

// NewClient creates a client over the given chains, or DefaultChains when nil.
func NewClient(chains map[string]*ChainConfig) *Client {
	if chains == nil {
		chains = DefaultChains()
	}
	return &Client{
		chains: chains,
		nodes:  make(map[string]*ethclient.Client),
	}
}

// AddChain adds or overrides a chain configuration. An existing connection
// for that name is dropped so the next call dials the new RPC URLs.
func (c *Client) AddChain(name string, config *ChainConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains[name] = config
	if node, ok := c.nodes[name]; ok {
		node.Close()
		delete(c.nodes, name)
	}
}

func (c *Client) GetChainConfig(chainName string) (*ChainConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.chains[chainName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chainName)
	}
	return config, nil
}

// ChainByID returns the name and configuration of the chain with the given id.
func (c *Client) ChainByID(id *big.Int) (string, *ChainConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, config := range c.chains {
		if config.ChainID != nil && config.ChainID.Cmp(id) == 0 {
			return name, config, true
		}
	}
	return "", nil, false
}

// ListChains returns the configured chain names in order.
func (c *Client) ListChains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.chains))
}

// node returns the connection for chainName, dialing the configured RPC
// URLs in order until one answers with the expected chain id. The write
// lock is held for the whole dial.
func (c *Client) node(chainName string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, ok := c.chains[chainName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chainName)
	}
	if node, ok := c.nodes[chainName]; ok {
		return node, nil
	}

	var lastErr error
	for _, rpcURL := range config.RPCURLs {
		node, err := dial(rpcURL, config.ChainID)
		if err != nil {
			lastErr = err
			continue
		}
		c.nodes[chainName] = node
		return node, nil
	}
	return nil, fmt.Errorf("failed to connect to %s: %w", chainName, lastErr)
}

func dial(rpcURL string, want *big.Int) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	node, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	pctx, pcancel := context.WithTimeout(context.Background(), probeTimeout)
	defer pcancel()
	got, err := node.ChainID(pctx)
	if err != nil {
		node.Close()
		return nil, err
	}
	if got.Cmp(want) != 0 {
		node.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %s, got %s", want, got)
	}
	return node, nil
}

// on runs fn against the node for chainName.
func on[T any](c *Client, chainName string, fn func(*ethclient.Client) (T, error)) (T, error) {
	node, err := c.node(chainName)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(node)
}

func (c *Client) GetBalance(ctx context.Context, chainName string, address common.Address) (*big.Int, error) {
	return on(c, chainName, func(n *ethclient.Client) (*big.Int, error) {
		return n.BalanceAt(ctx, address, nil)
	})
}

// GetNonce returns the pending nonce for an address
func (c *Client) GetNonce(ctx context.Context, chainName string, address common.Address) (uint64, error) {
	return on(c, chainName, func(n *ethclient.Client) (uint64, error) {
		return n.PendingNonceAt(ctx, address)
	})
}

func (c *Client) EstimateGas(ctx context.Context, chainName string, msg ethereum.CallMsg) (uint64, error) {
	return on(c, chainName, func(n *ethclient.Client) (uint64, error) {
		return n.EstimateGas(ctx, msg)
	})
}

func (c *Client) SuggestGasPrice(ctx context.Context, chainName string) (*big.Int, error) {
	return on(c, chainName, func(n *ethclient.Client) (*big.Int, error) {
		return n.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap returns the suggested priority fee for EIP-1559 transactions
func (c *Client) SuggestGasTipCap(ctx context.Context, chainName string) (*big.Int, error) {
	return on(c, chainName, func(n *ethclient.Client) (*big.Int, error) {
		return n.SuggestGasTipCap(ctx)
	})
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, chainName string, tx *types.Transaction) error {
	_, err := on(c, chainName, func(n *ethclient.Client) (struct{}, error) {
		return struct{}{}, n.SendTransaction(ctx, tx)
	})
	return err
}

// GetTransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound while it is pending.
func (c *Client) GetTransactionReceipt(ctx context.Context, chainName string, txHash common.Hash) (*types.Receipt, error) {
	return on(c, chainName, func(n *ethclient.Client) (*types.Receipt, error) {
		return n.TransactionReceipt(ctx, txHash)
	})
}

// CallContract executes a read-only contract call at the latest block
func (c *Client) CallContract(ctx context.Context, chainName string, msg ethereum.CallMsg) ([]byte, error) {
	return on(c, chainName, func(n *ethclient.Client) ([]byte, error) {
		return n.CallContract(ctx, msg, nil)
	})
}

// Close closes all node connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, node := range c.nodes {
		node.Close()
	}
	clear(c.nodes)
}
