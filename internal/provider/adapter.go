package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/icosale/internal/chain"
)

// Adapter gives typed access to a Provider.
type Adapter struct {
	p            Provider
	pollInterval time.Duration
}

// NewAdapter wraps p. A nil provider yields ErrProviderMissing.
func NewAdapter(p Provider) (*Adapter, error) {
	if p == nil {
		return nil, ErrProviderMissing
	}
	return &Adapter{p: p, pollInterval: 2 * time.Second}, nil
}

// SetPollInterval changes how often WaitMined polls for receipts.
func (a *Adapter) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollInterval = d
	}
}

// TxRequest is an eth_sendTransaction request. The wallet fills nonce,
// gas and fees.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Receipt is the part of a transaction receipt this client acts on.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// AddChainParams is the EIP-3085 wallet_addEthereumChain parameter.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParamsFor builds the add-chain descriptor for a chain config.
func AddChainParamsFor(c *chain.ChainConfig) AddChainParams {
	p := AddChainParams{
		ChainID:   c.ChainIDHex(),
		ChainName: c.Name,
		NativeCurrency: NativeCurrency{
			Name:     c.NativeCurrency,
			Symbol:   c.NativeCurrency,
			Decimals: c.NativeDecimals,
		},
		RPCURLs: c.RPCURLs,
	}
	if c.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{c.ExplorerURL}
	}
	return p
}

// ChainConfig converts the descriptor back into a chain config.
func (p AddChainParams) ChainConfig() (*chain.ChainConfig, error) {
	id, err := hexutil.DecodeBig(p.ChainID)
	if err != nil {
		return nil, fmt.Errorf("invalid chainId %q: %w", p.ChainID, err)
	}
	c := chain.NewChainConfig(p.ChainName, id.Int64(), p.RPCURLs, "", p.NativeCurrency.Symbol)
	if len(p.BlockExplorerURLs) > 0 {
		c.ExplorerURL = p.BlockExplorerURLs[0]
	}
	if p.NativeCurrency.Decimals != 0 {
		c.NativeDecimals = p.NativeCurrency.Decimals
	}
	return c, c.Validate()
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

// callArgs is the transaction object shared by eth_call and
// eth_sendTransaction.
type callArgs struct {
	From  *common.Address `json:"from,omitempty"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

type rpcReceipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

func (a *Adapter) request(ctx context.Context, out any, method string, params ...any) error {
	raw, err := a.p.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// RequestAccounts asks the wallet to authorize this client (may prompt).
func (a *Adapter) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := a.request(ctx, &accounts, MethodRequestAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Accounts returns already-authorized accounts without prompting.
func (a *Adapter) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := a.request(ctx, &accounts, MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the wallet's active chain.
func (a *Adapter) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := a.request(ctx, &id, MethodChainID); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// SwitchChain asks the wallet to change its active chain.
func (a *Adapter) SwitchChain(ctx context.Context, id *big.Int) error {
	return a.request(ctx, nil, MethodSwitchChain, switchChainParams{ChainID: hexutil.EncodeBig(id)})
}

// AddChain asks the wallet to learn a new chain.
func (a *Adapter) AddChain(ctx context.Context, params AddChainParams) error {
	return a.request(ctx, nil, MethodAddChain, params)
}

// Balance returns the native balance of addr at the latest block.
func (a *Adapter) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := a.request(ctx, &bal, MethodGetBalance, addr, "latest"); err != nil {
		return nil, err
	}
	return bal.ToInt(), nil
}

// Call runs a read-only contract call at the latest block.
func (a *Adapter) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	args := callArgs{To: msg.To, Data: msg.Data}
	if msg.From != (common.Address{}) {
		from := msg.From
		args.From = &from
	}
	if msg.Value != nil {
		args.Value = (*hexutil.Big)(msg.Value)
	}

	var out hexutil.Bytes
	if err := a.request(ctx, &out, MethodCall, args, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// SendTransaction hands a transaction to the wallet for signing and
// broadcast, returning its hash.
func (a *Adapter) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	from, to := req.From, req.To
	args := callArgs{From: &from, To: &to, Data: req.Data}
	if req.Value != nil {
		args.Value = (*hexutil.Big)(req.Value)
	}

	var hash common.Hash
	if err := a.request(ctx, &hash, MethodSendTransaction, args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionReceipt returns the receipt, or ethereum.NotFound while the
// transaction is pending.
func (a *Adapter) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *rpcReceipt
	if err := a.request(ctx, &r, MethodGetReceipt, hash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ethereum.NotFound
	}
	out := &Receipt{TxHash: r.TxHash, Status: uint64(r.Status), GasUsed: uint64(r.GasUsed)}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.ToInt().Uint64()
	}
	return out, nil
}

// WaitMined polls until the transaction has a receipt or ctx is done.
func (a *Adapter) WaitMined(ctx context.Context, hash common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := a.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// PersonalSign signs message with the account's key (EIP-191).
func (a *Adapter) PersonalSign(ctx context.Context, account common.Address, message []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := a.request(ctx, &sig, MethodPersonalSign, hexutil.Bytes(message), account); err != nil {
		return nil, err
	}
	return sig, nil
}

// SubscribeEvents forwards provider events to ch.
func (a *Adapter) SubscribeEvents(ch chan<- Event) event.Subscription {
	return a.p.SubscribeEvents(ch)
}
