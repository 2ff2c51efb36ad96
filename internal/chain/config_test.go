package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChains(t *testing.T) {
	chains := DefaultChains()

	t.Run("returns all expected chains", func(t *testing.T) {
		for _, name := range []string{"ethereum", "sepolia", "base-sepolia"} {
			_, ok := chains[name]
			assert.True(t, ok, "missing chain: %s", name)
		}
	})

	t.Run("sepolia config is correct", func(t *testing.T) {
		sepolia := chains["sepolia"]
		require.NotNil(t, sepolia)

		assert.Equal(t, int64(11155111), sepolia.ChainID.Int64())
		assert.Equal(t, "0xaa36a7", sepolia.ChainIDHex())
		assert.Equal(t, "https://sepolia.etherscan.io", sepolia.ExplorerURL)
		assert.Equal(t, "ETH", sepolia.NativeCurrency)
		assert.True(t, sepolia.IsTestnet)
	})

	t.Run("all chains validate", func(t *testing.T) {
		for name, config := range chains {
			assert.NoError(t, config.Validate(), "chain %s", name)
			assert.Equal(t, uint8(18), config.NativeDecimals, "chain %s", name)
		}
	})
}

func TestChainConfig_Validate(t *testing.T) {
	t.Run("rejects zero chain id", func(t *testing.T) {
		c := NewChainConfig("x", 0, []string{"http://localhost:8545"}, "", "ETH")
		assert.Error(t, c.Validate())
	})

	t.Run("rejects mismatched ids", func(t *testing.T) {
		c := NewChainConfig("x", 5, []string{"http://localhost:8545"}, "", "ETH")
		c.ChainID = big.NewInt(6)
		assert.Error(t, c.Validate())
	})

	t.Run("rejects missing rpc urls", func(t *testing.T) {
		c := NewChainConfig("x", 5, nil, "", "ETH")
		assert.Error(t, c.Validate())
	})

	t.Run("accepts complete descriptor", func(t *testing.T) {
		c := NewChainConfig("Local", 31337, []string{"http://127.0.0.1:8545"}, "", "ETH")
		require.NoError(t, c.Validate())
		assert.Equal(t, "0x7a69", c.ChainIDHex())
	})
}
