package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *KeystoreSigner {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	return &KeystoreSigner{address: crypto.PubkeyToAddress(key.PublicKey), key: key}
}

func TestKeystoreSigner_SignTransaction(t *testing.T) {
	t.Run("signs and recovers sender", func(t *testing.T) {
		signer := testSigner(t)
		chainID := big.NewInt(11155111)

		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     0,
			GasTipCap: big.NewInt(1),
			GasFeeCap: big.NewInt(2_000_000_000),
			Gas:       21000,
			To:        &testAddress,
			Value:     big.NewInt(1000),
		})

		signed, err := signer.SignTransaction(tx, chainID)
		require.NoError(t, err)

		from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, testAddress, from)
	})

	t.Run("returns error when locked", func(t *testing.T) {
		signer := testSigner(t)
		signer.Lock()

		tx := types.NewTransaction(0, testAddress, big.NewInt(1000), 21000, big.NewInt(1000000000), nil)
		_, err := signer.SignTransaction(tx, big.NewInt(1))
		assert.ErrorIs(t, err, ErrAccountLocked)
	})
}

func TestKeystoreSigner_SignMessage(t *testing.T) {
	t.Run("signs message with EIP-191 prefix", func(t *testing.T) {
		signer := testSigner(t)
		message := []byte("Hello, Ethereum!")

		sig, err := signer.SignMessage(message)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		assert.True(t, sig[64] == 27 || sig[64] == 28)

		recoverable := append([]byte{}, sig...)
		recoverable[64] -= 27
		pub, err := crypto.SigToPub(accounts.TextHash(message), recoverable)
		require.NoError(t, err)
		assert.Equal(t, testAddress, crypto.PubkeyToAddress(*pub))
	})

	t.Run("returns error when locked", func(t *testing.T) {
		signer := testSigner(t)
		signer.Lock()
		signer.Lock()

		_, err := signer.SignMessage([]byte("test"))
		assert.ErrorIs(t, err, ErrAccountLocked)
	})
}
