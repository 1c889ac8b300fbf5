// deploy publishes the prediction contract, its mock price feeds, seeds
// the catalog from config, and writes the deployment record the other
// commands read.
//
// Usage: deploy [network-name]
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"pricepredict/internal/config"
	"pricepredict/internal/deploy"
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

	network := "localhost"
	if len(os.Args) > 1 {
		network = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
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
	logger.Info("deploying", "network", network, "deployer", conn.Address.Hex(), "chain_id", conn.ChainID)

	eth, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		logger.Error("failed to dial rpc", "error", err)
		os.Exit(1)
	}
	defer eth.Close()

	record, err := deploy.NewDeployer(*cfg, eth, conn, logger).Run(ctx, network)
	if err != nil {
		logger.Error("deployment failed", "error", err)
		os.Exit(1)
	}

	logger.Info("deployment complete",
		"contract", record.ContractAddress,
		"network", record.Network,
		"mock_feeds", len(record.MockFeeds),
		"record", cfg.Deploy.RecordFile,
	)
}
