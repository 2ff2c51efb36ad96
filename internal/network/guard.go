// Package network keeps the wallet on the chain the sale contract lives on.
package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/logger"
	"github.com/yolodolo42/icosale/internal/provider"
)

var (
	ErrNetworkMismatch       = errors.New("wallet is on the wrong network")
	ErrNetworkSwitchRejected = errors.New("network switch rejected")
)

// ChainSwitcher is the wallet surface the guard drives. *provider.Adapter
// satisfies it.
type ChainSwitcher interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, id *big.Int) error
	AddChain(ctx context.Context, params provider.AddChainParams) error
}

type Guard struct {
	wallet   ChainSwitcher
	required *chain.ChainConfig
	log      logger.Logger
}

func NewGuard(wallet ChainSwitcher, required *chain.ChainConfig, log logger.Logger) *Guard {
	return &Guard{wallet: wallet, required: required, log: logger.OrNoop(log)}
}

// Required returns the chain the guard enforces.
func (g *Guard) Required() *chain.ChainConfig {
	return g.required
}

// OnRequiredChain reports whether id is the required chain.
func (g *Guard) OnRequiredChain(id *big.Int) bool {
	return id != nil && id.Cmp(g.required.ChainID) == 0
}

// EnsureRequiredNetwork switches the wallet to the required chain, adding
// it first when the wallet does not know it (code 4902).
func (g *Guard) EnsureRequiredNetwork(ctx context.Context) error {
	current, err := g.wallet.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if g.OnRequiredChain(current) {
		return nil
	}

	g.log.Info("switching network", map[string]any{
		"from": current.String(),
		"to":   g.required.ChainID.String(),
	})

	err = g.wallet.SwitchChain(ctx, g.required.ChainID)
	if code, ok := provider.ErrorCode(err); ok && code == provider.CodeUnrecognizedChain {
		g.log.Info("wallet does not know the network, adding it", map[string]any{"chain": g.required.Name})
		if err := g.wallet.AddChain(ctx, provider.AddChainParamsFor(g.required)); err != nil {
			return g.classify("add chain", err)
		}
		err = g.wallet.SwitchChain(ctx, g.required.ChainID)
	}
	if err != nil {
		return g.classify("switch chain", err)
	}

	current, err = g.wallet.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if !g.OnRequiredChain(current) {
		return fmt.Errorf("%w: on chain %s, need %s", ErrNetworkMismatch, current, g.required.ChainID)
	}
	return nil
}

func (g *Guard) classify(step string, err error) error {
	if provider.IsUserRejected(err) {
		g.log.Warn("network change rejected", map[string]any{"step": step})
		return fmt.Errorf("%w: %v", ErrNetworkSwitchRejected, err)
	}
	g.log.Error("network change failed", map[string]any{"step": step, "error": err})
	return fmt.Errorf("%w: %s: %v", ErrNetworkMismatch, step, err)
}
