package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrValueMissing    = errors.New("value missing")
	ErrPolicyViolation = errors.New("transaction rejected by policy")
)

// Intent is a state-changing call the sale client asked the wallet to send.
// Nil overrides are filled in from the node.
type Intent struct {
	Chain    string
	ChainID  *big.Int
	From     common.Address
	To       common.Address
	ValueWei *big.Int
	Data     []byte

	Nonce     *uint64
	GasLimit  *uint64
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// Policy limits what the local wallet agrees to sign.
type Policy struct {
	MaxPerTxWei *big.Int
	AllowTo     []common.Address
	DenyTo      []common.Address
}

// SuggestedFees is what the approval prompt shows next to a transaction.
type SuggestedFees struct {
	GasLimit         uint64
	MaxFeePerGas     *big.Int
	MaxPriorityFee   *big.Int
	EstimatedCostWei *big.Int
}

// Estimator is the node access BuildUnsignedTx needs. *chain.Client
// satisfies it.
type Estimator interface {
	GetNonce(ctx context.Context, chainName string, address common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context, chainName string) (*big.Int, error)
	SuggestGasPrice(ctx context.Context, chainName string) (*big.Int, error)
	EstimateGas(ctx context.Context, chainName string, msg ethereum.CallMsg) (uint64, error)
}

// Validate checks the intent against the deny list, the allow list and
// the per-transaction value cap, in that order.
func Validate(intent Intent, policy Policy) error {
	if intent.ValueWei == nil {
		return ErrValueMissing
	}
	if slices.Contains(policy.DenyTo, intent.To) {
		return fmt.Errorf("%w: destination %s is denied", ErrPolicyViolation, intent.To.Hex())
	}
	if len(policy.AllowTo) > 0 && !slices.Contains(policy.AllowTo, intent.To) {
		return fmt.Errorf("%w: destination %s is not allowed", ErrPolicyViolation, intent.To.Hex())
	}
	if policy.MaxPerTxWei != nil && intent.ValueWei.Cmp(policy.MaxPerTxWei) > 0 {
		return fmt.Errorf("%w: value above the %s wei limit", ErrPolicyViolation, policy.MaxPerTxWei)
	}
	return nil
}

// BuildUnsignedTx returns an unsigned EIP-1559 transaction for the intent.
// Gas estimation runs the call against the node, so a purchase that would
// revert fails here with the revert reason.
func BuildUnsignedTx(ctx context.Context, est Estimator, intent Intent) (*types.Transaction, SuggestedFees, error) {
	if intent.ValueWei == nil {
		return nil, SuggestedFees{}, ErrValueMissing
	}

	nonce, err := resolveNonce(ctx, est, intent)
	if err != nil {
		return nil, SuggestedFees{}, err
	}
	feeCap, tipCap, err := resolveFees(ctx, est, intent)
	if err != nil {
		return nil, SuggestedFees{}, err
	}
	gas, err := resolveGas(ctx, est, intent, feeCap, tipCap)
	if err != nil {
		return nil, SuggestedFees{}, err
	}

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   intent.ChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &intent.To,
		Value:     intent.ValueWei,
		Data:      intent.Data,
	})

	cost := new(big.Int).SetUint64(gas)
	cost.Mul(cost, feeCap).Add(cost, intent.ValueWei)
	return unsigned, SuggestedFees{
		GasLimit:         gas,
		MaxFeePerGas:     feeCap,
		MaxPriorityFee:   tipCap,
		EstimatedCostWei: cost,
	}, nil
}

func resolveNonce(ctx context.Context, est Estimator, intent Intent) (uint64, error) {
	if intent.Nonce != nil {
		return *intent.Nonce, nil
	}
	n, err := est.GetNonce(ctx, intent.Chain, intent.From)
	if err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	return n, nil
}

func resolveFees(ctx context.Context, est Estimator, intent Intent) (feeCap, tipCap *big.Int, err error) {
	tipCap = intent.GasTipCap
	if tipCap == nil {
		if tipCap, err = est.SuggestGasTipCap(ctx, intent.Chain); err != nil {
			return nil, nil, fmt.Errorf("suggest tip: %w", err)
		}
	}
	feeCap = intent.GasFeeCap
	if feeCap == nil {
		if feeCap, err = est.SuggestGasPrice(ctx, intent.Chain); err != nil {
			return nil, nil, fmt.Errorf("suggest gas price: %w", err)
		}
	}
	// Nodes reject a fee cap below the tip.
	if feeCap.Cmp(tipCap) < 0 {
		feeCap = new(big.Int).Set(tipCap)
	}
	return feeCap, tipCap, nil
}

func resolveGas(ctx context.Context, est Estimator, intent Intent, feeCap, tipCap *big.Int) (uint64, error) {
	if intent.GasLimit != nil {
		return *intent.GasLimit, nil
	}
	return est.EstimateGas(ctx, intent.Chain, ethereum.CallMsg{
		From:      intent.From,
		To:        &intent.To,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Value:     intent.ValueWei,
		Data:      intent.Data,
	})
}
