// resolver runs the auto-resolution service: it sweeps the full
// prediction set on a schedule and settles every prediction whose
// window has lapsed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"pricepredict/internal/config"
	"pricepredict/internal/deploy"
	"pricepredict/internal/ledger"
	"pricepredict/internal/resolver"
	"pricepredict/internal/wallet"
)

func main() {
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
	logger := config.NewLogger(cfg.Logging)

	if cfg.Network.ContractAddress == "" {
		record, err := deploy.Load(cfg.Network.DeploymentFile)
		if err != nil {
			logger.Error("failed to load deployment record", "error", err)
			os.Exit(1)
		}
		cfg.Network.ContractAddress = record.ContractAddress
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := wallet.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to load wallet", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	conn, err := w.Connect(ctx)
	if err != nil {
		logger.Error("failed to connect wallet", "error", err)
		os.Exit(1)
	}

	client, err := ledger.Dial(ctx, cfg.Network.RPCURL, common.HexToAddress(cfg.Network.ContractAddress), logger)
	if err != nil {
		logger.Error("failed to dial ledger", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	svc := resolver.New(cfg.Resolver, client, conn, logger)
	if err := svc.Start(ctx); err != nil {
		logger.Error("failed to start resolver", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	svc.Stop()
}
