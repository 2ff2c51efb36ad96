package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/icosale/internal/testutil"
)

const (
	saleAddr   = "0x5a1e000000000000000000000000000000000001"
	stableAddr = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	Prepare(v)
	if yaml != "" {
		path := filepath.Join(testutil.TempDir(t), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	testutil.SetEnv(t, "ICOSALE_CONTRACT_SALE", saleAddr)
	testutil.SetEnv(t, "ICOSALE_CONTRACT_STABLE_TOKEN", stableAddr)

	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "Sepolia", cfg.Network.Name)
	assert.Equal(t, int64(11155111), cfg.Network.ChainID)
	assert.Equal(t, WalletLocal, cfg.Wallet.Mode)
	assert.Equal(t, 30*time.Second, cfg.Poll.Refresh)
	assert.Equal(t, time.Second, cfg.Poll.Tick)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.History.Enabled)
	assert.NotEmpty(t, cfg.DataDir)

	required := cfg.RequiredChain()
	assert.Equal(t, "0xaa36a7", required.ChainIDHex())
	assert.Equal(t, uint8(18), required.NativeDecimals)
	assert.NoError(t, required.Validate())
	assert.Equal(t, "sepolia", cfg.ChainKey())
	assert.Equal(t, stableAddr, cfg.StableAddress().Hex())
}

func TestLoad_File(t *testing.T) {
	v := newViper(t, `
data_dir: /tmp/icosale
network:
  name: Devnet
  chain_id: 31337
  rpc_urls: ["http://127.0.0.1:8545"]
  currency: ETH
contract:
  sale: `+saleAddr+`
  stable_token: `+stableAddr+`
wallet:
  mode: remote
  rpc_url: http://127.0.0.1:1248
  max_per_tx: "0.5"
poll:
  refresh: 10s
log:
  level: debug
metrics:
  addr: 127.0.0.1:9090
history:
  enabled: true
`)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/icosale", cfg.DataDir)
	assert.Equal(t, int64(31337), cfg.Network.ChainID)
	assert.Equal(t, WalletRemote, cfg.Wallet.Mode)
	assert.Equal(t, 10*time.Second, cfg.Poll.Refresh)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "devnet", cfg.ChainKey())

	max, err := cfg.MaxPerTxWei()
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", max.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing contracts", `log: {level: info}`},
		{"bad sale address", "contract: {sale: nope, stable_token: " + stableAddr + "}"},
		{"unknown wallet mode", "contract: {sale: " + saleAddr + ", stable_token: " + stableAddr + "}\nwallet: {mode: browser}"},
		{"remote without url", "contract: {sale: " + saleAddr + ", stable_token: " + stableAddr + "}\nwallet: {mode: remote}"},
		{"bad log level", "contract: {sale: " + saleAddr + ", stable_token: " + stableAddr + "}\nlog: {level: loud}"},
		{"bad rpc url", "contract: {sale: " + saleAddr + ", stable_token: " + stableAddr + "}\nnetwork: {rpc_urls: [not a url]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.UnsetEnv(t, "ICOSALE_CONTRACT_SALE")
			testutil.UnsetEnv(t, "ICOSALE_CONTRACT_STABLE_TOKEN")
			_, err := Load(newViper(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvRPCList(t *testing.T) {
	testutil.SetEnv(t, "ICOSALE_CONTRACT_SALE", saleAddr)
	testutil.SetEnv(t, "ICOSALE_CONTRACT_STABLE_TOKEN", stableAddr)
	testutil.SetEnv(t, "ICOSALE_NETWORK_RPC_URLS", "http://a.example:8545,http://b.example:8545")

	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example:8545", "http://b.example:8545"}, cfg.Network.RPCURLs)
}
