package setup

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/wallet"
)

// Status represents how much of icosale is configured.
type Status struct {
	HasSale       bool
	HasWallet     bool
	IsComplete    bool
	Sale          string
	StableToken   string
	WalletMode    string
	RemoteURL     string
	WalletAddress string
}

// DetectStatus checks the settings held by v and the keystore under dataDir.
func DetectStatus(v *viper.Viper, dataDir string) *Status {
	status := &Status{
		Sale:        v.GetString("contract.sale"),
		StableToken: v.GetString("contract.stable_token"),
		WalletMode:  v.GetString("wallet.mode"),
		RemoteURL:   v.GetString("wallet.rpc_url"),
	}
	status.HasSale = common.IsHexAddress(status.Sale) && common.IsHexAddress(status.StableToken)

	if status.WalletMode == config.WalletRemote {
		status.HasWallet = status.RemoteURL != ""
	} else {
		status.HasWallet = hasKeyFiles(filepath.Join(dataDir, "keystore"))
	}

	if status.HasWallet && status.WalletMode != config.WalletRemote {
		status.WalletAddress = v.GetString("wallet.address")
		if status.WalletAddress == "" {
			if ks, err := wallet.OpenKeystore(dataDir); err == nil {
				if accounts := ks.Accounts(); len(accounts) > 0 {
					status.WalletAddress = accounts[0].Hex()
				}
			}
		}
	}

	// A wallet can be added later with `icosale wallet create`; the sale
	// contracts cannot be guessed.
	status.IsComplete = status.HasSale
	return status
}

// NeedsSetup returns true if interactive setup should run
func NeedsSetup(v *viper.Viper, dataDir string) bool {
	return !DetectStatus(v, dataDir).IsComplete
}

func hasKeyFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	// Filter out directories and hidden files
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name()[0] != '.' {
			return true
		}
	}
	return false
}
