package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/provider"
)

// probeRemote dials the wallet endpoint and reads its chain ID.
func (m WizardModel) probeRemote() tea.Cmd {
	url := m.remoteInput.Value()

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		remote, err := provider.DialRemote(ctx, url, time.Minute)
		if err != nil {
			return remoteProbedMsg{err: err}
		}
		defer remote.Close()

		raw, err := remote.Request(ctx, provider.MethodChainID)
		if err != nil {
			return remoteProbedMsg{err: err}
		}
		var id hexutil.Big
		if err := json.Unmarshal(raw, &id); err != nil {
			return remoteProbedMsg{err: fmt.Errorf("wallet returned a bad chain id: %w", err)}
		}
		return remoteProbedMsg{chainID: (*big.Int)(&id)}
	}
}

// Save stores the wizard's answers in v and writes them to the config file
// v was read from, or to dataDir/config.yaml.
func Save(v *viper.Viper, dataDir string, r *Result) error {
	v.Set("contract.sale", r.Sale)
	v.Set("contract.stable_token", r.StableToken)
	v.Set("wallet.mode", r.WalletMode)
	if r.WalletMode == config.WalletRemote {
		v.Set("wallet.rpc_url", r.RemoteURL)
	} else if r.WalletAddress != "" {
		v.Set("wallet.address", r.WalletAddress)
	}

	if v.ConfigFileUsed() != "" {
		if err := v.WriteConfig(); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		return nil
	}
	if err := v.WriteConfigAs(filepath.Join(dataDir, "config.yaml")); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
