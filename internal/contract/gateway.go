// Package contract binds the sale contract and its stable token to an
// account.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/icosale/internal/provider"
)

var ErrUnexpectedOutput = errors.New("unexpected contract output")

// Backend executes calls and transactions. *provider.Adapter satisfies it.
type Backend interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SendTransaction(ctx context.Context, req provider.TxRequest) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*provider.Receipt, error)
}

// Gateway knows the fixed contract addresses. Handles are cheap; derive a
// new one whenever the account changes.
type Gateway struct {
	backend Backend
	sale    common.Address
	stable  common.Address
}

func NewGateway(backend Backend, sale, stable common.Address) *Gateway {
	return &Gateway{backend: backend, sale: sale, stable: stable}
}

func (g *Gateway) SaleAddress() common.Address   { return g.sale }
func (g *Gateway) StableAddress() common.Address { return g.stable }

// Sale returns the sale contract bound to account. A zero account is fine
// for reads.
func (g *Gateway) Sale(account common.Address) *Sale {
	return &Sale{bound{backend: g.backend, abi: saleABI, address: g.sale, account: account}}
}

// StableToken returns the stable token bound to account.
func (g *Gateway) StableToken(account common.Address) *Token {
	return &Token{bound{backend: g.backend, abi: erc20ABI, address: g.stable, account: account}}
}

type bound struct {
	backend Backend
	abi     abi.ABI
	address common.Address
	account common.Address
}

func (b bound) Address() common.Address { return b.address }
func (b bound) Account() common.Address { return b.account }

// Wait blocks until hash is mined.
func (b bound) Wait(ctx context.Context, hash common.Hash) (*provider.Receipt, error) {
	return b.backend.WaitMined(ctx, hash)
}

func (b bound) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := b.backend.Call(ctx, ethereum.CallMsg{From: b.account, To: &b.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	vals, err := b.abi.Unpack(method, out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("%w: failed to decode %s", ErrUnexpectedOutput, method)
	}
	value, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: invalid %s return type", ErrUnexpectedOutput, method)
	}
	return value, nil
}

func (b bound) transact(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return b.backend.SendTransaction(ctx, provider.TxRequest{
		From:  b.account,
		To:    b.address,
		Value: value,
		Data:  data,
	})
}

// Sale is the token sale contract.
type Sale struct{ bound }

// TokenPrice is the price of one token in stable minor units.
func (s *Sale) TokenPrice(ctx context.Context) (*big.Int, error) {
	return s.callUint(ctx, "tokenPriceUSDTinWei")
}

func (s *Sale) TokensSold(ctx context.Context) (*big.Int, error) {
	return s.callUint(ctx, "tokensSold")
}

func (s *Sale) HardCap(ctx context.Context) (*big.Int, error) {
	return s.callUint(ctx, "hardCap")
}

// StartTime and EndTime are unix seconds.
func (s *Sale) StartTime(ctx context.Context) (*big.Int, error) {
	return s.callUint(ctx, "startTime")
}

func (s *Sale) EndTime(ctx context.Context) (*big.Int, error) {
	return s.callUint(ctx, "endTime")
}

func (s *Sale) TokensForNative(ctx context.Context, wei *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getAmountOfTokenForETH", wei)
}

func (s *Sale) TokensForStable(ctx context.Context, amount *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getAmountOfTokenForUSDT", amount)
}

func (s *Sale) NativeForTokens(ctx context.Context, tokens *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getAmountOfETHForToken", tokens)
}

func (s *Sale) StableForTokens(ctx context.Context, tokens *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getAmountOfUSDTForToken", tokens)
}

// BuyWithNative sends buyTokensWithETH with wei attached.
func (s *Sale) BuyWithNative(ctx context.Context, wei *big.Int) (common.Hash, error) {
	return s.transact(ctx, wei, "buyTokensWithETH")
}

// BuyWithStable sends buyTokensWithUSDT. The sale must already have an
// allowance for amount.
func (s *Sale) BuyWithStable(ctx context.Context, amount *big.Int) (common.Hash, error) {
	return s.transact(ctx, nil, "buyTokensWithUSDT", amount)
}

// Token is an ERC20 token.
type Token struct{ bound }

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callUint(ctx, "allowance", owner, spender)
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", owner)
}

func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	return t.transact(ctx, nil, "approve", spender, amount)
}
