// Price prediction daemon — tracks one wallet's prediction session
// against the on-chain game and serves the dashboard.
//
// Architecture:
//
//	main.go             — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go    — orchestrator: wires wallet → ledger → tracker, rebuilds on identity change
//	tracker/tracker.go  — reconciles local session state against the contract on a poll cadence
//	wallet/wallet.go    — key loading, tx signing, account/chain change events (SIGHUP reloads keys)
//	ledger/client.go    — contract client: catalog and prediction reads, submit/batch/resolve writes
//	api/                — HTTP + WebSocket dashboard with submit/batch/resolve actions
//	deploy/record.go    — deployment record the daemon reads to find the contract
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pricepredict/internal/api"
	"pricepredict/internal/config"
	"pricepredict/internal/deploy"
	"pricepredict/internal/engine"
)

func main() {
	// .env is optional; real deployments use exported env vars.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("PREDICT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging)

	// A deployment record can stand in for an explicit contract address.
	if cfg.Network.ContractAddress == "" {
		record, err := deploy.Load(cfg.Network.DeploymentFile)
		if err != nil {
			logger.Error("failed to load deployment record", "error", err)
			os.Exit(1)
		}
		if record.ChainID != cfg.Network.ChainID {
			logger.Error("deployment record is for a different chain",
				"record_chain", record.ChainID, "config_chain", cfg.Network.ChainID)
			os.Exit(1)
		}
		cfg.Network.ContractAddress = record.ContractAddress
	}

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("prediction daemon started",
		"contract", cfg.Network.ContractAddress,
		"chain_id", cfg.Network.ChainID,
		"poll_interval", cfg.Tracker.PollInterval,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			// Re-read the key source; an address change rebuilds the session.
			if err := eng.ReloadWallet(); err != nil {
				logger.Error("wallet reload failed", "error", err)
			}
			continue
		}
		logger.Info("received shutdown signal", "signal", sig.String())
		break
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	eng.Stop()
}
