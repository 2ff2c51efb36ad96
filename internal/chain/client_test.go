package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ChainByID(t *testing.T) {
	c := NewClient(nil)
	defer c.Close()

	t.Run("finds sepolia", func(t *testing.T) {
		name, config, ok := c.ChainByID(big.NewInt(11155111))
		require.True(t, ok)
		assert.Equal(t, "sepolia", name)
		assert.Equal(t, "Sepolia", config.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, ok := c.ChainByID(big.NewInt(424242))
		assert.False(t, ok)
	})

	t.Run("added chain is found", func(t *testing.T) {
		c.AddChain("devnet", NewChainConfig("Devnet", 424242, []string{"http://127.0.0.1:1"}, "", "ETH"))
		name, _, ok := c.ChainByID(big.NewInt(424242))
		require.True(t, ok)
		assert.Equal(t, "devnet", name)
		assert.Contains(t, c.ListChains(), "devnet")
	})
}

func TestClient_UnknownChain(t *testing.T) {
	c := NewClient(map[string]*ChainConfig{})
	defer c.Close()

	_, err := c.GetChainConfig("nope")
	assert.ErrorIs(t, err, ErrUnknownChain)

	_, err = c.GetBalance(context.Background(), "nope", common.Address{})
	assert.ErrorIs(t, err, ErrUnknownChain)

	err = c.SendTransaction(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestClient_ListChainsSorted(t *testing.T) {
	c := NewClient(map[string]*ChainConfig{
		"zeta":  NewChainConfig("Zeta", 7, []string{"http://127.0.0.1:1"}, "", "ETH"),
		"alpha": NewChainConfig("Alpha", 8, []string{"http://127.0.0.1:1"}, "", "ETH"),
	})
	defer c.Close()

	assert.Equal(t, []string{"alpha", "zeta"}, c.ListChains())
}
