package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/icosale/internal/testutil"
)

// Well-known development key; never fund it.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestOpenKeystore(t *testing.T) {
	t.Run("creates keystore directory", func(t *testing.T) {
		ks, err := OpenKeystore(testutil.TempDir(t))
		require.NoError(t, err)
		assert.Empty(t, ks.Accounts())
	})

	t.Run("handles existing directory", func(t *testing.T) {
		dir := testutil.TempDir(t)
		_, err := OpenKeystore(dir)
		require.NoError(t, err)
		_, err = OpenKeystore(dir)
		require.NoError(t, err)
	})
}

func TestKeystore_ImportKey(t *testing.T) {
	t.Run("imports with and without 0x prefix", func(t *testing.T) {
		ks, err := OpenKeystore(testutil.TempDir(t))
		require.NoError(t, err)

		account, err := ks.ImportKey("0x"+testPrivateKey, "testpassword")
		require.NoError(t, err)
		assert.Equal(t, testAddress, account.Address)
		assert.True(t, ks.HasAccount(testAddress))
		assert.Equal(t, []common.Address{testAddress}, ks.Accounts())
	})

	t.Run("rejects invalid hex", func(t *testing.T) {
		ks, err := OpenKeystore(testutil.TempDir(t))
		require.NoError(t, err)

		_, err = ks.ImportKey("not-a-valid-hex-key", "testpassword")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("rejects short key", func(t *testing.T) {
		ks, err := OpenKeystore(testutil.TempDir(t))
		require.NoError(t, err)

		_, err = ks.ImportKey("abcd1234", "testpassword")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestKeystore_CreateAccount(t *testing.T) {
	ks, err := OpenKeystore(testutil.TempDir(t))
	require.NoError(t, err)

	account, err := ks.CreateAccount("testpassword123")
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, account.Address)
	assert.True(t, ks.HasAccount(account.Address))
}

func TestKeystore_Unlock(t *testing.T) {
	dir := testutil.TempDir(t)
	ks, err := OpenKeystore(dir)
	require.NoError(t, err)
	_, err = ks.ImportKey(testPrivateKey, "correctpassword")
	require.NoError(t, err)

	t.Run("returns signer for valid account", func(t *testing.T) {
		signer, err := ks.Unlock(testAddress, "correctpassword")
		require.NoError(t, err)
		assert.Equal(t, testAddress, signer.Address())
	})

	t.Run("returns error for wrong password", func(t *testing.T) {
		_, err := ks.Unlock(testAddress, "wrongpassword")
		require.Error(t, err)
	})

	t.Run("returns error for non-existent address", func(t *testing.T) {
		_, err := ks.Unlock(common.HexToAddress("0x1234567890123456789012345678901234567890"), "anypassword")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
