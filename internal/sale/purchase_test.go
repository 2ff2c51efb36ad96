package sale

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/icosale/internal/contract/contracttest"
	"github.com/yolodolo42/icosale/internal/history"
	"github.com/yolodolo42/icosale/internal/provider"
	"github.com/yolodolo42/icosale/internal/testutil"
)

func TestBuy_Preconditions(t *testing.T) {
	ctx := testutil.Context(t)
	c := contracttest.New()

	t.Run("not connected", func(t *testing.T) {
		o := NewOrchestrator(newGateway(c), disconnected(), nil, nil)
		_, err := o.Buy(ctx, "1", Native)
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.False(t, o.IsLoading())
	})

	t.Run("invalid amounts", func(t *testing.T) {
		o := NewOrchestrator(newGateway(c), connected(), nil, nil)
		for _, amount := range []string{"", "x", "0", "-2"} {
			_, err := o.Buy(ctx, amount, Stable)
			assert.ErrorIs(t, err, ErrInvalidAmount, amount)
		}
		assert.False(t, o.IsLoading())
	})

	assert.Empty(t, c.Txs())
}

func TestBuy_Native(t *testing.T) {
	ctx := testutil.Context(t)
	c := contracttest.New()
	o := NewOrchestrator(newGateway(c), connected(), nil, nil)

	res, err := o.Buy(ctx, "1.5", Native)
	require.NoError(t, err)
	assert.Nil(t, res.ApprovalTx)
	assert.True(t, res.Receipt.Succeeded())
	assert.False(t, res.Request.RequiresApproval)

	txs := c.Txs()
	require.Len(t, txs, 1)
	assert.Equal(t, "buyTokensWithETH", txs[0].Method)
	assert.Equal(t, "1500000000000000000", txs[0].Value.String())
	assert.Equal(t, buyer, txs[0].From)
	assert.Equal(t, []string{"send buyTokensWithETH", "wait " + res.TxHash.Hex()}, c.Log())
}

func TestBuy_StableApprovesFirst(t *testing.T) {
	ctx := testutil.Context(t)
	c := contracttest.New()
	o := NewOrchestrator(newGateway(c), connected(), nil, nil)

	res, err := o.Buy(ctx, "50", Stable)
	require.NoError(t, err)
	require.NotNil(t, res.ApprovalTx)
	assert.True(t, res.Request.RequiresApproval)

	assert.Equal(t, []string{
		"call allowance",
		"send approve",
		"wait " + res.ApprovalTx.Hex(),
		"send buyTokensWithUSDT",
		"wait " + res.TxHash.Hex(),
	}, c.Log())

	txs := c.Txs()
	require.Len(t, txs, 2)
	assert.Equal(t, "approve", txs[0].Method)
	assert.Equal(t, contracttest.SaleAddress, txs[0].Args[0])
	assert.Equal(t, units(50, 6), txs[0].Args[1])
	assert.Equal(t, "buyTokensWithUSDT", txs[1].Method)
	assert.Equal(t, units(50, 6), txs[1].Args[0])
}

func TestBuy_StableWithAllowance(t *testing.T) {
	ctx := testutil.Context(t)
	c := contracttest.New()
	c.SetAllowance(buyer, units(100, 6))
	o := NewOrchestrator(newGateway(c), connected(), nil, nil)

	res, err := o.Buy(ctx, "50", Stable)
	require.NoError(t, err)
	assert.Nil(t, res.ApprovalTx)
	require.Len(t, c.Txs(), 1)
	assert.Equal(t, units(50, 6), c.Allowance(buyer))
}

func TestBuy_Failures(t *testing.T) {
	ctx := testutil.Context(t)

	t.Run("revert reason is surfaced and a retry works", func(t *testing.T) {
		c := contracttest.New()
		c.SendErr["buyTokensWithETH"] = contracttest.RevertError("Sale has ended")
		o := NewOrchestrator(newGateway(c), connected(), nil, nil)

		_, err := o.Buy(ctx, "1", Native)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransactionReverted)
		var txErr *TxError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, "Sale has ended", txErr.UserMessage())
		assert.Equal(t, "Sale has ended", UserMessage(err))
		assert.False(t, o.IsLoading())

		delete(c.SendErr, "buyTokensWithETH")
		_, err = o.Buy(ctx, "1", Native)
		assert.NoError(t, err)
	})

	t.Run("mined with status zero", func(t *testing.T) {
		c := contracttest.New()
		c.Revert["buyTokensWithETH"] = true
		o := NewOrchestrator(newGateway(c), connected(), nil, nil)

		_, err := o.Buy(ctx, "1", Native)
		assert.ErrorIs(t, err, ErrTransactionReverted)
		var txErr *TxError
		require.ErrorAs(t, err, &txErr)
		assert.NotEqual(t, common.Hash{}, txErr.TxHash)
	})

	t.Run("rejected approval stops the purchase", func(t *testing.T) {
		c := contracttest.New()
		c.SendErr["approve"] = provider.UserRejected("transaction signature")
		o := NewOrchestrator(newGateway(c), connected(), nil, nil)

		_, err := o.Buy(ctx, "50", Stable)
		assert.ErrorIs(t, err, ErrApprovalFailed)
		assert.True(t, provider.IsUserRejected(err))
		assert.Equal(t, UnknownErrorMessage, UserMessage(err))
		assert.Empty(t, c.Txs())
		assert.NotContains(t, c.Log(), "send buyTokensWithUSDT")
	})

	t.Run("reverted approval", func(t *testing.T) {
		c := contracttest.New()
		c.Revert["approve"] = true
		o := NewOrchestrator(newGateway(c), connected(), nil, nil)

		_, err := o.Buy(ctx, "50", Stable)
		assert.ErrorIs(t, err, ErrApprovalFailed)
		assert.NotContains(t, c.Log(), "send buyTokensWithUSDT")
	})
}

// gatedChain holds WaitMined until released.
type gatedChain struct {
	*contracttest.Chain
	release chan struct{}
}

func (g *gatedChain) WaitMined(ctx context.Context, hash common.Hash) (*provider.Receipt, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Chain.WaitMined(ctx, hash)
}

func TestBuy_InFlight(t *testing.T) {
	ctx := testutil.Context(t)
	g := &gatedChain{Chain: contracttest.New(), release: make(chan struct{})}
	o := NewOrchestrator(newGateway(g), connected(), nil, nil)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = o.Buy(ctx, "1", Native)
	}()

	require.Eventually(t, o.IsLoading, time.Second, time.Millisecond)
	_, err := o.Buy(ctx, "1", Native)
	assert.ErrorIs(t, err, ErrPurchaseInFlight)

	close(g.release)
	wg.Wait()
	assert.NoError(t, firstErr)
	assert.False(t, o.IsLoading())
	assert.Len(t, g.Txs(), 1)
}

func TestBuy_CancelledWait(t *testing.T) {
	g := &gatedChain{Chain: contracttest.New(), release: make(chan struct{})}
	o := NewOrchestrator(newGateway(g), connected(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Buy(ctx, "1", Native)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, o.IsLoading())
}

func TestBuy_History(t *testing.T) {
	ctx := testutil.Context(t)
	store, err := history.OpenDSN(":memory:")
	require.NoError(t, err)
	defer store.Close()

	c := contracttest.New()
	o := NewOrchestrator(newGateway(c), connected(), nil, nil)
	o.SetHistory(store, 11155111)

	_, err = o.Buy(ctx, "50", Stable)
	require.NoError(t, err)

	c.SendErr["buyTokensWithETH"] = contracttest.RevertError("Sale has ended")
	_, err = o.Buy(ctx, "1", Native)
	require.Error(t, err)

	records, err := store.List(ctx, buyer.Hex(), 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	byKind := map[history.Kind][]history.Record{}
	for _, r := range records {
		byKind[r.Kind] = append(byKind[r.Kind], r)
		assert.Equal(t, int64(11155111), r.ChainID)
	}
	require.Len(t, byKind[history.KindApprove], 1)
	assert.Equal(t, history.StatusConfirmed, byKind[history.KindApprove][0].Status)

	var statuses []string
	for _, r := range byKind[history.KindPurchase] {
		statuses = append(statuses, string(r.Status)+":"+r.Currency)
		if r.Status == history.StatusFailed {
			assert.Equal(t, "Sale has ended", r.Error)
			assert.Empty(t, r.TxHash)
		}
	}
	assert.ElementsMatch(t, []string{"confirmed:USDT", "failed:ETH"}, statuses)
	assert.True(t, strings.HasPrefix(byKind[history.KindApprove][0].TxHash, "0x"))
}
