package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ethpandaops/bundloor/pkg/builders"
	"github.com/ethpandaops/bundloor/pkg/config"
	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/marketshare"
	"github.com/ethpandaops/bundloor/pkg/metrics"
	"github.com/ethpandaops/bundloor/pkg/registry"
	"github.com/ethpandaops/bundloor/pkg/rpc/execution"
	"github.com/ethpandaops/bundloor/pkg/wallet"
)

// app holds the services shared by the submission commands.
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	el       *execution.Client
	wallet   *wallet.Wallet
	metrics  *prometheus.Registry
	manager  *manager.Manager
}

// setupApp connects to the EL node (if configured), loads the searcher key,
// refreshes market shares and builds one client per active builder.
func setupApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// 1. EL client (optional)
	var chain wallet.ChainReader

	if cfg.ELRPC != "" {
		logger.Info("Connecting to EL RPC...")

		el, err := execution.NewClient(ctx, cfg.ELRPC, logger)
		if err != nil {
			return nil, err
		}

		a.el = el
		chain = el
	}

	// 2. Searcher wallet
	var err error

	if cfg.SearcherKey != "" {
		a.wallet, err = wallet.NewWallet(cfg.SearcherKey, chain, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid searcher key: %w", err)
		}
	} else {
		a.wallet, err = wallet.NewEphemeralWallet(chain, logger)
		if err != nil {
			a.Close()
			return nil, err
		}

		logger.WithField("address", a.wallet.Address().Hex()).
			Warn("No searcher key configured, signing with an ephemeral key")
	}

	a.wallet.SetChainID(new(big.Int).SetUint64(cfg.ChainID))

	if chain != nil {
		if err := a.wallet.Sync(ctx); err != nil {
			logger.WithError(err).Warn("Failed to sync wallet, using configured chain ID")
		}
	}

	// 3. Builder registry, optionally with live shares
	a.registry, err = cfg.Registry()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	if cfg.MarketShare.URL != "" {
		fetcher := marketshare.NewFetcher(cfg.MarketShare.URL, cfg.MarketShare.Timeout, logger)

		a.registry, err = fetcher.Refresh(ctx, a.registry)
		if err != nil {
			logger.WithError(err).Warn("Failed to refresh market shares, using static weights")
		}
	}

	// 4. Metrics
	a.metrics = prometheus.NewRegistry()
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.NewMetrics(a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 5. Builder clients
	clients, err := newClients(cfg, a.registry, a.wallet)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 6. Manager
	a.manager, err = manager.NewManager(cfg.ManagerConfig(), a.registry, clients, m, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize manager: %w", err)
	}

	return a, nil
}

func newClients(cfg *config.Config, reg *registry.Registry, w *wallet.Wallet) (map[string]builders.Client, error) {
	signer := w.Signer()
	clients := make(map[string]builders.Client, reg.Len())

	for _, b := range reg.Active() {
		bc, _ := cfg.Builder(b.Name)

		client, err := builders.NewClient(b, builders.Options{
			Signer:    signer,
			RateLimit: bc.RateLimit,
			Method:    bc.Method,
			Log:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", b.Name, err)
		}

		clients[b.Name] = client
	}

	return clients, nil
}

// targetBlock returns the explicit block, or latest+1 from the EL node.
func (a *app) targetBlock(ctx context.Context, explicit uint64) (uint64, error) {
	if explicit > 0 {
		return explicit, nil
	}

	if a.el == nil {
		return 0, fmt.Errorf("--block is required when no --el-rpc is configured")
	}

	return a.el.TargetBlock(ctx)
}

// Close releases the EL connection.
func (a *app) Close() {
	if a.el != nil {
		a.el.Close()
	}
}
