// feedkeeper pushes live spot prices into the mock aggregator feeds on
// a local network, so the prediction game resolves against realistic
// price movement. Public networks use real oracle feeds and never run
// this.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"pricepredict/internal/config"
	"pricepredict/internal/deploy"
	"pricepredict/internal/feeds"
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

	record, err := deploy.Load(cfg.Network.DeploymentFile)
	if err != nil {
		logger.Error("failed to load deployment record", "error", err)
		os.Exit(1)
	}
	if len(record.MockFeeds) == 0 {
		logger.Error("deployment record has no mock feeds; feedkeeper only runs on local networks")
		os.Exit(1)
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

	eth, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		logger.Error("failed to dial rpc", "error", err)
		os.Exit(1)
	}
	defer eth.Close()

	keeper := feeds.New(cfg.Feeds, eth, conn, record.FeedAddresses(), logger)
	logger.Info("feedkeeper started",
		"feeds", len(record.MockFeeds),
		"interval", cfg.Feeds.UpdateInterval,
		"spot_api", cfg.Feeds.SpotBaseURL,
	)

	go keeper.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
	cancel()
}
