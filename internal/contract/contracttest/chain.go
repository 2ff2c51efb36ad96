// Package contracttest simulates the sale contract and its stable token
// behind a contract.Backend, decoding calldata with the real ABIs.
package contracttest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/provider"
)

var (
	SaleAddress   = common.HexToAddress("0x5a1e000000000000000000000000000000000001")
	StableAddress = common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
)

var oneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Tx is a transaction the chain accepted.
type Tx struct {
	Hash   common.Hash
	From   common.Address
	To     common.Address
	Value  *big.Int
	Method string
	Args   []any
}

// Chain is an in-memory sale deployment. Prices are per whole token:
// NativePrice in wei, StablePrice in stable minor units.
type Chain struct {
	mu sync.Mutex

	NativePrice *big.Int
	StablePrice *big.Int
	Sold        *big.Int
	Cap         *big.Int
	Start       *big.Int
	End         *big.Int

	// CallErr fails view calls by method name. SendErr fails submission.
	// Revert mines the transaction with status 0.
	CallErr map[string]error
	SendErr map[string]error
	Revert  map[string]bool

	allowances map[[2]common.Address]*big.Int
	receipts   map[common.Hash]*provider.Receipt
	log        []string
	txs        []Tx
	nonce      uint64
}

// New returns a sale priced at 0.001 ETH or 0.1 USDT per token with a
// 1,000,000 token cap.
func New() *Chain {
	return &Chain{
		NativePrice: big.NewInt(1_000_000_000_000_000),
		StablePrice: big.NewInt(100_000),
		Sold:        new(big.Int),
		Cap:         new(big.Int).Mul(big.NewInt(1_000_000), oneToken),
		Start:       big.NewInt(0),
		End:         big.NewInt(4_102_444_800),
		CallErr:     map[string]error{},
		SendErr:     map[string]error{},
		Revert:      map[string]bool{},
		allowances:  map[[2]common.Address]*big.Int{},
		receipts:    map[common.Hash]*provider.Receipt{},
	}
}

// SetAllowance sets the stable token allowance of owner for the sale.
func (c *Chain) SetAllowance(owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowances[[2]common.Address{owner, SaleAddress}] = new(big.Int).Set(amount)
}

// Allowance returns owner's allowance for the sale.
func (c *Chain) Allowance(owner common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowance(owner, SaleAddress)
}

func (c *Chain) allowance(owner, spender common.Address) *big.Int {
	if a, ok := c.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Log returns the ordered "call X", "send X" and "wait X" entries.
func (c *Chain) Log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

// Txs returns accepted transactions in order.
func (c *Chain) Txs() []Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tx(nil), c.txs...)
}

// CallCount counts view calls of method.
func (c *Chain) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, entry := range c.log {
		if entry == "call "+method {
			n++
		}
	}
	return n
}

func decode(parsed abi.ABI, data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("calldata too short")
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (c *Chain) abiFor(to *common.Address) (abi.ABI, error) {
	switch {
	case to == nil:
		return abi.ABI{}, errors.New("missing to")
	case *to == SaleAddress:
		return contract.SaleABI(), nil
	case *to == StableAddress:
		return contract.ERC20ABI(), nil
	default:
		return abi.ABI{}, fmt.Errorf("no contract at %s", to.Hex())
	}
}

// Call implements contract.Backend.
func (c *Chain) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	parsed, err := c.abiFor(msg.To)
	if err != nil {
		return nil, err
	}
	method, args, err := decode(parsed, msg.Data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "call "+method.Name)
	if err := c.CallErr[method.Name]; err != nil {
		return nil, err
	}

	var out *big.Int
	switch method.Name {
	case "tokenPriceUSDTinWei":
		out = c.StablePrice
	case "tokensSold":
		out = c.Sold
	case "hardCap":
		out = c.Cap
	case "startTime":
		out = c.Start
	case "endTime":
		out = c.End
	case "getAmountOfTokenForETH":
		out = mulDiv(args[0].(*big.Int), oneToken, c.NativePrice)
	case "getAmountOfTokenForUSDT":
		out = mulDiv(args[0].(*big.Int), oneToken, c.StablePrice)
	case "getAmountOfETHForToken":
		out = mulDiv(args[0].(*big.Int), c.NativePrice, oneToken)
	case "getAmountOfUSDTForToken":
		out = mulDiv(args[0].(*big.Int), c.StablePrice, oneToken)
	case "allowance":
		out = c.allowance(args[0].(common.Address), args[1].(common.Address))
	case "balanceOf":
		out = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000))
	default:
		return nil, fmt.Errorf("%s is not a view", method.Name)
	}
	return method.Outputs.Pack(out)
}

func mulDiv(x, y, z *big.Int) *big.Int {
	if z.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, y)
	return out.Quo(out, z)
}

// SendTransaction implements contract.Backend. Effects apply immediately;
// the receipt is available to WaitMined.
func (c *Chain) SendTransaction(_ context.Context, req provider.TxRequest) (common.Hash, error) {
	to := req.To
	parsed, err := c.abiFor(&to)
	if err != nil {
		return common.Hash{}, err
	}
	method, args, err := decode(parsed, req.Data)
	if err != nil {
		return common.Hash{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "send "+method.Name)
	if err := c.SendErr[method.Name]; err != nil {
		return common.Hash{}, err
	}

	value := new(big.Int)
	if req.Value != nil {
		value.Set(req.Value)
	}

	switch method.Name {
	case "approve":
		c.allowances[[2]common.Address{req.From, args[0].(common.Address)}] = new(big.Int).Set(args[1].(*big.Int))
	case "buyTokensWithUSDT":
		amount := args[0].(*big.Int)
		if c.allowance(req.From, SaleAddress).Cmp(amount) < 0 {
			return common.Hash{}, RevertError("ERC20: insufficient allowance")
		}
		c.allowances[[2]common.Address{req.From, SaleAddress}] = new(big.Int).Sub(c.allowance(req.From, SaleAddress), amount)
		c.Sold = new(big.Int).Add(c.Sold, mulDiv(amount, oneToken, c.StablePrice))
	case "buyTokensWithETH":
		if value.Sign() == 0 {
			return common.Hash{}, RevertError("Must send ETH")
		}
		c.Sold = new(big.Int).Add(c.Sold, mulDiv(value, oneToken, c.NativePrice))
	default:
		return common.Hash{}, fmt.Errorf("%s is not a write", method.Name)
	}

	c.nonce++
	hash := crypto.Keccak256Hash(req.From.Bytes(), new(big.Int).SetUint64(c.nonce).Bytes())
	status := uint64(1)
	if c.Revert[method.Name] {
		status = 0
	}
	c.receipts[hash] = &provider.Receipt{TxHash: hash, Status: status, BlockNumber: c.nonce, GasUsed: 50_000}
	c.txs = append(c.txs, Tx{Hash: hash, From: req.From, To: req.To, Value: value, Method: method.Name, Args: args})
	return hash, nil
}

// WaitMined implements contract.Backend.
func (c *Chain) WaitMined(ctx context.Context, hash common.Hash) (*provider.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "wait "+hash.Hex())
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// RevertError is what a node returns when gas estimation hits a revert.
func RevertError(reason string) *provider.RPCError {
	str, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: str}}.Pack(reason)
	data := append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
	return &provider.RPCError{
		Code:    3,
		Message: "execution reverted: " + reason,
		Data:    hexutil.Encode(data),
	}
}
