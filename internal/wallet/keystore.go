package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
)

// Keystore wraps go-ethereum's encrypted key directory under dataDir/keystore.
type Keystore struct {
	ks      *keystore.KeyStore
	dataDir string
}

// OpenKeystore opens (or creates) the keystore directory.
func OpenKeystore(dataDir string) (*Keystore, error) {
	keystoreDir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	ks := keystore.NewKeyStore(keystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)

	return &Keystore{
		ks:      ks,
		dataDir: dataDir,
	}, nil
}

// CreateAccount creates a new account with the given password
func (k *Keystore) CreateAccount(password string) (accounts.Account, error) {
	return k.ks.NewAccount(password)
}

// ImportKey imports a hex private key and encrypts it with the password
func (k *Keystore) ImportKey(privateKeyHex string, password string) (accounts.Account, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return k.ks.ImportECDSA(privateKey, password)
}

// Accounts returns the addresses held in the keystore
func (k *Keystore) Accounts() []common.Address {
	accs := k.ks.Accounts()
	out := make([]common.Address, 0, len(accs))
	for _, acc := range accs {
		out = append(out, acc.Address)
	}
	return out
}

// HasAccount reports whether the keystore holds a key for address.
func (k *Keystore) HasAccount(address common.Address) bool {
	return k.ks.HasAddress(address)
}

// Unlock decrypts the key for address and returns a signer holding it.
func (k *Keystore) Unlock(address common.Address, password string) (*KeystoreSigner, error) {
	account, err := k.ks.Find(accounts.Account{Address: address})
	if err != nil {
		return nil, ErrAccountNotFound
	}

	keyJSON, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock account: %w", err)
	}

	return &KeystoreSigner{
		address: account.Address,
		key:     key.PrivateKey,
	}, nil
}

// KeystoreSigner signs with a decrypted keystore key until Lock is called.
type KeystoreSigner struct {
	// mu keeps signing from racing with Lock zeroing the key.
	mu      sync.RWMutex
	address common.Address
	key     *ecdsa.PrivateKey // nil when locked
}

// Address returns the address of the signer
func (s *KeystoreSigner) Address() common.Address {
	return s.address
}

// SignTransaction signs a transaction
func (s *KeystoreSigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return nil, ErrAccountLocked
	}

	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// SignMessage signs an arbitrary message using EIP-191 personal sign
func (s *KeystoreSigner) SignMessage(message []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return nil, ErrAccountLocked
	}

	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, err
	}

	// ecrecover expects V in {27,28}.
	sig[64] += 27
	return sig, nil
}

// Lock zeroes the private key. Safe to call multiple times; afterwards every
// signing call returns ErrAccountLocked.
func (s *KeystoreSigner) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		s.key.D.SetInt64(0)
		s.key = nil
	}
}
