package sale

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/history"
	"github.com/yolodolo42/icosale/internal/logger"
	"github.com/yolodolo42/icosale/internal/metrics"
	"github.com/yolodolo42/icosale/internal/provider"
)

// HistoryWriter stores purchase records. *history.Store satisfies it.
type HistoryWriter interface {
	Save(ctx context.Context, r history.Record) error
}

// PurchaseRequest is one buy attempt.
type PurchaseRequest struct {
	Amount           string
	Currency         Currency
	Units            *big.Int
	RequiresApproval bool
}

// PurchaseResult describes a confirmed purchase.
type PurchaseResult struct {
	Request    PurchaseRequest
	ApprovalTx *common.Hash
	TxHash     common.Hash
	Receipt    *provider.Receipt
}

// Orchestrator submits purchases. Only one runs at a time; a concurrent
// Buy returns ErrPurchaseInFlight.
type Orchestrator struct {
	gateway  *contract.Gateway
	accounts AccountSource
	log      logger.Logger
	metrics  metrics.Recorder

	history HistoryWriter
	chainID int64

	loading atomic.Bool
}

func NewOrchestrator(gateway *contract.Gateway, accounts AccountSource, log logger.Logger, rec metrics.Recorder) *Orchestrator {
	return &Orchestrator{
		gateway:  gateway,
		accounts: accounts,
		log:      logger.OrNoop(log),
		metrics:  metrics.OrNoop(rec),
	}
}

// SetHistory enables local purchase records for chainID.
func (o *Orchestrator) SetHistory(h HistoryWriter, chainID int64) {
	o.history = h
	o.chainID = chainID
}

// IsLoading reports whether a purchase is in flight.
func (o *Orchestrator) IsLoading() bool {
	return o.loading.Load()
}

// Buy spends amount of c on tokens and waits for every transaction to be
// mined. Stable purchases first raise the allowance when it is too low.
func (o *Orchestrator) Buy(ctx context.Context, amount string, c Currency) (*PurchaseResult, error) {
	if !o.loading.CompareAndSwap(false, true) {
		return nil, ErrPurchaseInFlight
	}
	defer o.loading.Store(false)

	account, ok := o.accounts.Account()
	if !ok {
		return nil, ErrNotConnected
	}
	if !c.valid() {
		return nil, fmt.Errorf("%w: unknown currency", ErrInvalidAmount)
	}
	units, err := chain.ParsePositiveUnits(amount, c.Decimals())
	if err != nil {
		return nil, err
	}

	req := PurchaseRequest{Amount: amount, Currency: c, Units: units}
	labels := map[string]string{"currency": c.String()}
	start := time.Now()
	defer func() {
		o.metrics.ObserveLatency("purchase", time.Since(start), labels)
	}()

	result, err := o.buy(ctx, account, req)
	if err != nil {
		o.metrics.IncCounter(metrics.PurchaseFailed, labels)
		o.log.Error("purchase failed", map[string]any{
			"account":  account.Hex(),
			"currency": c.String(),
			"amount":   amount,
			"error":    err,
		})
		return nil, err
	}
	o.metrics.IncCounter(metrics.PurchaseSucceeded, labels)
	o.log.Info("purchase confirmed", map[string]any{
		"account":  account.Hex(),
		"currency": c.String(),
		"amount":   amount,
		"tx":       result.TxHash.Hex(),
	})
	return result, nil
}

func (o *Orchestrator) buy(ctx context.Context, account common.Address, req PurchaseRequest) (*PurchaseResult, error) {
	sale := o.gateway.Sale(account)
	result := &PurchaseResult{Request: req}

	if req.Currency.NeedsApproval() {
		hash, err := o.ensureAllowance(ctx, account, sale.Address(), &req)
		if err != nil {
			return nil, err
		}
		result.Request = req
		result.ApprovalTx = hash
	}

	var (
		hash common.Hash
		err  error
	)
	if req.Currency == Stable {
		hash, err = sale.BuyWithStable(ctx, req.Units)
	} else {
		hash, err = sale.BuyWithNative(ctx, req.Units)
	}
	if err != nil {
		txErr := o.txError(ErrTransactionReverted, req.Currency, common.Hash{}, err)
		o.record(ctx, account, history.KindPurchase, req, common.Hash{}, history.StatusFailed, txErr)
		return nil, txErr
	}
	o.metrics.IncCounter(metrics.PurchaseSubmitted, map[string]string{"currency": req.Currency.String()})
	o.record(ctx, account, history.KindPurchase, req, hash, history.StatusSubmitted, nil)

	receipt, err := o.wait(ctx, sale.Wait, ErrTransactionReverted, req.Currency, hash)
	if err != nil {
		o.record(ctx, account, history.KindPurchase, req, hash, statusFor(err), err)
		return nil, err
	}
	o.record(ctx, account, history.KindPurchase, req, hash, history.StatusConfirmed, nil)

	result.TxHash = hash
	result.Receipt = receipt
	return result, nil
}

// ensureAllowance approves the sale for req.Units when the current
// allowance is lower, and waits for the approval to be mined.
func (o *Orchestrator) ensureAllowance(ctx context.Context, account, spender common.Address, req *PurchaseRequest) (*common.Hash, error) {
	token := o.gateway.StableToken(account)

	allowance, err := token.Allowance(ctx, account, spender)
	if err != nil {
		return nil, o.txError(ErrApprovalFailed, req.Currency, common.Hash{}, fmt.Errorf("%w: %v", ErrContractCallFailed, err))
	}
	if allowance.Cmp(req.Units) >= 0 {
		return nil, nil
	}
	req.RequiresApproval = true

	o.log.Info("approval required", map[string]any{
		"account":   account.Hex(),
		"allowance": allowance.String(),
		"required":  req.Units.String(),
	})
	hash, err := token.Approve(ctx, spender, req.Units)
	if err != nil {
		txErr := o.txError(ErrApprovalFailed, req.Currency, common.Hash{}, err)
		o.record(ctx, account, history.KindApprove, *req, common.Hash{}, history.StatusFailed, txErr)
		return nil, txErr
	}
	o.metrics.IncCounter(metrics.ApprovalSubmitted, map[string]string{"currency": req.Currency.String()})
	o.record(ctx, account, history.KindApprove, *req, hash, history.StatusSubmitted, nil)

	if _, err := o.wait(ctx, token.Wait, ErrApprovalFailed, req.Currency, hash); err != nil {
		o.record(ctx, account, history.KindApprove, *req, hash, statusFor(err), err)
		return nil, err
	}
	o.record(ctx, account, history.KindApprove, *req, hash, history.StatusConfirmed, nil)
	return &hash, nil
}

type waitFunc func(ctx context.Context, hash common.Hash) (*provider.Receipt, error)

func (o *Orchestrator) wait(ctx context.Context, wait waitFunc, kind error, c Currency, hash common.Hash) (*provider.Receipt, error) {
	receipt, err := wait(ctx, hash)
	if err != nil {
		return nil, o.txError(kind, c, hash, err)
	}
	if !receipt.Succeeded() {
		return nil, &TxError{Kind: kind, Currency: c, TxHash: hash, Reason: "Transaction reverted on-chain", Err: ErrTransactionReverted}
	}
	return receipt, nil
}

func (o *Orchestrator) txError(kind error, c Currency, hash common.Hash, err error) *TxError {
	return &TxError{Kind: kind, Currency: c, TxHash: hash, Reason: RevertReason(err), Err: err}
}

func statusFor(err error) history.Status {
	var txErr *TxError
	if errors.As(err, &txErr) && txErr.Err == ErrTransactionReverted {
		return history.StatusReverted
	}
	return history.StatusFailed
}

func (o *Orchestrator) record(ctx context.Context, account common.Address, kind history.Kind, req PurchaseRequest, hash common.Hash, status history.Status, failure error) {
	if o.history == nil {
		return
	}
	r := history.Record{
		ChainID:  o.chainID,
		Kind:     kind,
		Currency: req.Currency.Symbol(),
		Amount:   req.Amount,
		Account:  account.Hex(),
		Status:   status,
	}
	if hash != (common.Hash{}) {
		r.TxHash = hash.Hex()
	}
	if failure != nil {
		r.Error = UserMessage(failure)
	}
	if err := o.history.Save(context.WithoutCancel(ctx), r); err != nil {
		o.log.Warn("could not save purchase record", map[string]any{"error": err})
	}
}
