package sale

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/logger"
	"github.com/yolodolo42/icosale/internal/metrics"
)

// AccountSource yields the connected account. *session.Manager satisfies it.
type AccountSource interface {
	Account() (common.Address, bool)
}

type Direction int

const (
	AmountToTokens Direction = iota
	TokensToAmount
)

func (d Direction) String() string {
	if d == TokensToAmount {
		return "tokens_to_amount"
	}
	return "amount_to_tokens"
}

// Quote is one estimate. Output is a decimal string; Warning is set when the
// contract read failed and Output fell back to "0".
type Quote struct {
	Input       string
	Currency    Currency
	Direction   Direction
	Output      string
	OutputUnits *big.Int
	Warning     error
}

func zeroQuote(input string, c Currency, d Direction) Quote {
	return Quote{Input: input, Currency: c, Direction: d, Output: "0", OutputUnits: new(big.Int)}
}

// QuoteEngine estimates conversions with the sale contract's view functions.
type QuoteEngine struct {
	gateway  *contract.Gateway
	accounts AccountSource
	log      logger.Logger
	metrics  metrics.Recorder
}

func NewQuoteEngine(gateway *contract.Gateway, accounts AccountSource, log logger.Logger, rec metrics.Recorder) *QuoteEngine {
	return &QuoteEngine{
		gateway:  gateway,
		accounts: accounts,
		log:      logger.OrNoop(log),
		metrics:  metrics.OrNoop(rec),
	}
}

func (q *QuoteEngine) sale() *contract.Sale {
	var account common.Address
	if q.accounts != nil {
		account, _ = q.accounts.Account()
	}
	return q.gateway.Sale(account)
}

// EstimateOutput converts a payment amount into tokens.
func (q *QuoteEngine) EstimateOutput(ctx context.Context, amount string, c Currency) Quote {
	out := zeroQuote(amount, c, AmountToTokens)
	units, err := chain.ParsePositiveUnits(amount, c.Decimals())
	if err != nil || !c.valid() {
		return out
	}

	sale := q.sale()
	tokens, err := q.read(ctx, c, AmountToTokens, func() (*big.Int, error) {
		if c == Stable {
			return sale.TokensForStable(ctx, units)
		}
		return sale.TokensForNative(ctx, units)
	})
	if err != nil {
		out.Warning = err
		return out
	}
	out.OutputUnits = tokens
	out.Output = chain.FormatUnits(tokens, TokenDecimals)
	return out
}

// EstimateInput converts a token amount into the payment it costs.
func (q *QuoteEngine) EstimateInput(ctx context.Context, tokens string, c Currency) Quote {
	out := zeroQuote(tokens, c, TokensToAmount)
	units, err := chain.ParsePositiveUnits(tokens, TokenDecimals)
	if err != nil || !c.valid() {
		return out
	}

	sale := q.sale()
	cost, err := q.read(ctx, c, TokensToAmount, func() (*big.Int, error) {
		if c == Stable {
			return sale.StableForTokens(ctx, units)
		}
		return sale.NativeForTokens(ctx, units)
	})
	if err != nil {
		out.Warning = err
		return out
	}
	out.OutputUnits = cost
	out.Output = chain.FormatUnits(cost, c.Decimals())
	return out
}

func (q *QuoteEngine) read(ctx context.Context, c Currency, d Direction, call func() (*big.Int, error)) (*big.Int, error) {
	labels := map[string]string{"currency": c.String(), "direction": d.String()}
	q.metrics.IncCounter(metrics.QuoteRequested, labels)

	start := time.Now()
	v, err := call()
	q.metrics.ObserveLatency("quote", time.Since(start), labels)
	if err != nil {
		q.metrics.IncCounter(metrics.QuoteFailed, labels)
		q.log.Warn("quote failed", map[string]any{
			"currency":  c.String(),
			"direction": d.String(),
			"error":     err,
		})
		return nil, fmt.Errorf("%w: %v", ErrContractCallFailed, err)
	}
	return v, nil
}

// TokenPrice returns the price of one token in the stable currency. On a
// failed read it returns "0" and an error wrapping ErrContractCallFailed.
func (q *QuoteEngine) TokenPrice(ctx context.Context) (string, error) {
	price, err := q.read(ctx, Stable, TokensToAmount, func() (*big.Int, error) {
		return q.sale().TokenPrice(ctx)
	})
	if err != nil {
		return "0", err
	}
	return chain.FormatUnits(price, Stable.Decimals()), nil
}

// Calculator holds the two linked inputs of a purchase form. Exactly one
// side is typed by the user; the other shows the estimate.
type Calculator struct {
	engine *QuoteEngine

	mu       sync.Mutex
	currency Currency
	mode     Direction
	amount   string
	tokens   string
	last     Quote
}

func NewCalculator(engine *QuoteEngine, c Currency) *Calculator {
	return &Calculator{engine: engine, currency: c, last: zeroQuote("", c, AmountToTokens)}
}

// SetAmount makes the payment amount authoritative and clears the typed
// token amount.
func (c *Calculator) SetAmount(ctx context.Context, amount string) Quote {
	c.mu.Lock()
	c.mode, c.amount, c.tokens = AmountToTokens, amount, ""
	cur := c.currency
	c.last = zeroQuote(amount, cur, AmountToTokens)
	c.mu.Unlock()

	return c.store(c.engine.EstimateOutput(ctx, amount, cur))
}

// SetTokens makes the token amount authoritative and clears the typed
// payment amount.
func (c *Calculator) SetTokens(ctx context.Context, tokens string) Quote {
	c.mu.Lock()
	c.mode, c.tokens, c.amount = TokensToAmount, tokens, ""
	cur := c.currency
	c.last = zeroQuote(tokens, cur, TokensToAmount)
	c.mu.Unlock()

	return c.store(c.engine.EstimateInput(ctx, tokens, cur))
}

// SetCurrency switches currency and re-quotes the authoritative side.
func (c *Calculator) SetCurrency(ctx context.Context, cur Currency) Quote {
	c.mu.Lock()
	c.currency = cur
	mode, amount, tokens := c.mode, c.amount, c.tokens
	c.mu.Unlock()

	if mode == TokensToAmount {
		return c.store(c.engine.EstimateInput(ctx, tokens, cur))
	}
	return c.store(c.engine.EstimateOutput(ctx, amount, cur))
}

// store keeps q unless the inputs changed while it was being computed.
func (c *Calculator) store(q Quote) Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	input := c.amount
	if c.mode == TokensToAmount {
		input = c.tokens
	}
	if q.Direction == c.mode && q.Currency == c.currency && q.Input == input {
		c.last = q
	}
	return q
}

func (c *Calculator) Mode() Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Calculator) Currency() Currency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currency
}

// Inputs returns the payment and token fields as displayed: the typed side
// verbatim and the other side as the latest estimate.
func (c *Calculator) Inputs() (amount, tokens string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == TokensToAmount {
		return c.last.Output, c.tokens
	}
	return c.amount, c.last.Output
}

// PaymentAmount is the amount a purchase should spend.
func (c *Calculator) PaymentAmount() string {
	amount, _ := c.Inputs()
	return amount
}

// Last returns the most recent estimate.
func (c *Calculator) Last() Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
