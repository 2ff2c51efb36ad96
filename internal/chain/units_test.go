package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad big int literal %s", s)
	return v
}

func TestParseUnits(t *testing.T) {
	t.Run("whole ether", func(t *testing.T) {
		v, err := ParseUnits("1", 18)
		require.NoError(t, err)
		assert.Equal(t, mustBig(t, "1000000000000000000"), v)
	})

	t.Run("fractional ether", func(t *testing.T) {
		v, err := ParseUnits("0.25", 18)
		require.NoError(t, err)
		assert.Equal(t, mustBig(t, "250000000000000000"), v)
	})

	t.Run("six decimal stable", func(t *testing.T) {
		v, err := ParseUnits("50", 6)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(50_000_000), v)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		v, err := ParseUnits("  2.5 ", 6)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(2_500_000), v)
	})

	t.Run("rejects too many decimals", func(t *testing.T) {
		_, err := ParseUnits("0.0000001", 6)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	for _, bad := range []string{"", "abc", "1,5", "0x10", "NaN", "--1"} {
		bad := bad
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParseUnits(bad, 18)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestParsePositiveUnits(t *testing.T) {
	for _, bad := range []string{"0", "0.000", "-1", "-0.5"} {
		bad := bad
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParsePositiveUnits(bad, 18)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}

	v, err := ParsePositiveUnits("0.000001", 6)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "0", FormatUnits(big.NewInt(0), 18))
	assert.Equal(t, "1000", FormatUnits(mustBig(t, "1000000000000000000000"), 18))
	assert.Equal(t, "0.5", FormatUnits(mustBig(t, "500000000000000000"), 18))
	assert.Equal(t, "50", FormatUnits(big.NewInt(50_000_000), 6))
	assert.Equal(t, "0.000000000000000001", FormatUnits(big.NewInt(1), 18))
}

func TestFormatBalance(t *testing.T) {
	t.Run("nil balance returns zero", func(t *testing.T) {
		assert.Equal(t, "0", FormatBalance(nil, 18))
	})

	t.Run("zero balance", func(t *testing.T) {
		assert.Equal(t, "0.000000", FormatBalance(big.NewInt(0), 18))
	})

	t.Run("1 ETH (18 decimals)", func(t *testing.T) {
		assert.Equal(t, "1.000000", FormatBalance(mustBig(t, "1000000000000000000"), 18))
	})

	t.Run("very small balance", func(t *testing.T) {
		assert.Equal(t, "0.000000", FormatBalance(big.NewInt(1), 18))
	})

	t.Run("6 decimals (USDT)", func(t *testing.T) {
		assert.Equal(t, "100.000000", FormatBalance(big.NewInt(100000000), 6))
	})

	t.Run("0 decimals", func(t *testing.T) {
		assert.Equal(t, "12345", FormatBalance(big.NewInt(12345), 0))
	})
}
