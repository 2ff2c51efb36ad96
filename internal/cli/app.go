package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/icosale/internal/chain"
	"github.com/yolodolo42/icosale/internal/config"
	"github.com/yolodolo42/icosale/internal/contract"
	"github.com/yolodolo42/icosale/internal/history"
	"github.com/yolodolo42/icosale/internal/logger"
	"github.com/yolodolo42/icosale/internal/metrics"
	"github.com/yolodolo42/icosale/internal/network"
	"github.com/yolodolo42/icosale/internal/provider"
	"github.com/yolodolo42/icosale/internal/sale"
	"github.com/yolodolo42/icosale/internal/session"
	"github.com/yolodolo42/icosale/internal/tx"
	"github.com/yolodolo42/icosale/internal/wallet"
)

// passwordEnv unlocks the local keystore account without a prompt.
const passwordEnv = config.EnvPrefix + "_WALLET_PASSWORD"

var errNoLocalAccount = errors.New("no local wallet found. Use 'icosale wallet create' or 'icosale wallet import' first")

type appOptions struct {
	// approver builds the confirmation prompts for the local provider.
	approver func(*config.Config) provider.Approver
	// unlock asks for the keystore password so the local wallet can sign.
	// Read-only commands leave it off.
	unlock bool
}

// app holds every component wired from one config.
type app struct {
	cfg *config.Config
	log logger.Logger
	zap *logger.ZapLogger

	metrics    metrics.Recorder
	prometheus *metrics.PrometheusRecorder

	chains  *chain.Client
	local   *provider.Local
	remote  *provider.Remote
	adapter *provider.Adapter

	guard   *network.Guard
	session *session.Manager
	gateway *contract.Gateway
	quotes  *sale.QuoteEngine
	orders  *sale.Orchestrator
	poller  *sale.Poller
	history *history.Store

	stopMetrics context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	zl, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	a.zap, a.log = zl, zl

	a.metrics = metrics.NoopRecorder{}
	if cfg.Metrics.Addr != "" {
		a.prometheus = metrics.NewPrometheusRecorder()
		a.metrics = a.prometheus
		mctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		go func() {
			if err := a.prometheus.Serve(mctx, cfg.Metrics.Addr); err != nil {
				a.log.Error("metrics server stopped", map[string]any{"error": err, "addr": cfg.Metrics.Addr})
			}
		}()
	}

	if err := a.openProvider(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}

	a.adapter, err = provider.NewAdapter(a.walletProvider())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.adapter.SetPollInterval(cfg.Poll.Receipt)

	a.guard = network.NewGuard(a.adapter, cfg.RequiredChain(), a.log)
	a.session = session.NewManager(a.adapter, a.guard, a.log, a.metrics)
	a.gateway = contract.NewGateway(a.adapter, cfg.SaleAddress(), cfg.StableAddress())
	a.quotes = sale.NewQuoteEngine(a.gateway, a.session, a.log, a.metrics)
	a.orders = sale.NewOrchestrator(a.gateway, a.session, a.log, a.metrics)
	a.poller = sale.NewPoller(a.gateway, a.log, a.metrics)
	a.poller.SetIntervals(cfg.Poll.Refresh, cfg.Poll.Tick)

	if cfg.History.Enabled {
		a.history, err = history.Open(cfg.DataDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.orders.SetHistory(a.history, cfg.Network.ChainID)
	}

	a.log.Debug("app ready", map[string]any{
		"wallet":  cfg.Wallet.Mode,
		"chain":   cfg.Network.ChainID,
		"sale":    cfg.Contract.Sale,
		"history": cfg.History.Enabled,
	})
	return a, nil
}

func (a *app) walletProvider() provider.Provider {
	if a.remote != nil {
		return a.remote
	}
	if a.local != nil {
		return a.local
	}
	return nil
}

func (a *app) openProvider(ctx context.Context, opts appOptions) error {
	if a.cfg.Wallet.Mode == config.WalletRemote {
		r, err := provider.DialRemote(ctx, a.cfg.Wallet.RPCURL, a.cfg.Poll.Events)
		if err != nil {
			return err
		}
		a.remote = r
		return nil
	}

	a.chains = chain.NewClient(nil)
	required := a.cfg.RequiredChain()
	a.chains.AddChain(a.cfg.ChainKey(), required)

	maxPerTx, err := a.cfg.MaxPerTxWei()
	if err != nil {
		return fmt.Errorf("wallet.max_per_tx: %w", err)
	}

	var signer wallet.Signer
	if opts.unlock {
		s, err := a.unlockSigner()
		if err != nil {
			return err
		}
		signer = s
	}

	var approver provider.Approver
	if opts.approver != nil {
		approver = opts.approver(a.cfg)
	}
	a.local = provider.NewLocal(a.chains, signer, approver, required.ChainID, tx.Policy{MaxPerTxWei: maxPerTx})
	return nil
}

// unlockSigner opens the configured keystore account, or the first one.
func (a *app) unlockSigner() (*wallet.KeystoreSigner, error) {
	ks, err := wallet.OpenKeystore(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}

	var address common.Address
	if a.cfg.Wallet.Address != "" {
		address = common.HexToAddress(a.cfg.Wallet.Address)
		if !ks.HasAccount(address) {
			return nil, fmt.Errorf("%w: %s", wallet.ErrAccountNotFound, address.Hex())
		}
	} else {
		accounts := ks.Accounts()
		if len(accounts) == 0 {
			return nil, errNoLocalAccount
		}
		address = accounts[0]
	}

	password := os.Getenv(passwordEnv)
	if password == "" {
		password, err = readPassword(fmt.Sprintf("Password for %s: ", address.Hex()))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}
	return ks.Unlock(address, password)
}

// balances reads the native and stable balances of account.
func (a *app) balances(ctx context.Context, account common.Address) (native, stable *big.Int, err error) {
	native, err = a.adapter.Balance(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("native balance: %w", err)
	}
	stable, err = a.gateway.StableToken(account).BalanceOf(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("stable balance: %w", err)
	}
	return native, stable, nil
}

func (a *app) Close() {
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.session != nil {
		a.session.Stop()
	}
	if a.remote != nil {
		a.remote.Close()
	}
	if a.chains != nil {
		a.chains.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("close history", map[string]any{"error": err})
		}
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.zap != nil {
		a.zap.Sync()
	}
}
