package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/icosale/internal/testutil"
)

const (
	alice = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	bob   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestOpen_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = os.Stat(filepath.Join(dir, "history.db"))
	assert.NoError(t, err)
}

func TestStore_SaveAndList(t *testing.T) {
	ctx := testutil.Context(t)
	store, err := OpenDSN(":memory:")
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Save(ctx, Record{
		ChainID: 11155111, TxHash: "0xaa", Kind: KindApprove, Currency: "USDT",
		Amount: "50", Account: alice, Status: StatusSubmitted, CreatedAt: base,
	}))
	require.NoError(t, store.Save(ctx, Record{
		ChainID: 11155111, TxHash: "0xbb", Kind: KindPurchase, Currency: "USDT",
		Amount: "50", Account: alice, Status: StatusSubmitted, CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, store.Save(ctx, Record{
		ChainID: 11155111, Kind: KindPurchase, Currency: "ETH",
		Amount: "1", Account: bob, Status: StatusFailed, Error: "Unknown error occurred", CreatedAt: base.Add(2 * time.Second),
	}))

	t.Run("status updates replace the row", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, Record{
			ChainID: 11155111, TxHash: "0xbb", Kind: KindPurchase, Currency: "USDT",
			Amount: "50", Account: alice, Status: StatusConfirmed, CreatedAt: base.Add(time.Minute),
		}))

		records, err := store.List(ctx, alice, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "0xbb", records[0].TxHash)
		assert.Equal(t, StatusConfirmed, records[0].Status)
		assert.Equal(t, KindApprove, records[1].Kind)
		assert.True(t, records[1].CreatedAt.Equal(base))
	})

	t.Run("empty account lists everything", func(t *testing.T) {
		records, err := store.List(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, bob, records[0].Account)
		assert.Empty(t, records[0].TxHash)
		assert.Equal(t, "Unknown error occurred", records[0].Error)
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, store.Save(ctx, Record{ChainID: 1}))
	})
}

func TestStore_Nil(t *testing.T) {
	var s *Store
	assert.ErrorIs(t, s.Save(context.Background(), Record{}), ErrNotInitialized)
	_, err := s.List(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, s.Close())
}
