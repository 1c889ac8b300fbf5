// check is a one-shot diagnostic: it connects, dumps the catalog,
// feed prices, the wallet's predictions and stats, then exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"pricepredict/internal/config"
	"pricepredict/internal/deploy"
	"pricepredict/internal/ledger"
	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	w, err := wallet.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to load wallet", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	conn, err := w.Connect(ctx)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	client, err := ledger.Dial(ctx, cfg.Network.RPCURL, common.HexToAddress(cfg.Network.ContractAddress), logger)
	if err != nil {
		logger.Error("failed to dial ledger", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if conn.ChainID.Int64() != cfg.Network.ChainID {
		logger.Error("endpoint is on a different chain",
			"endpoint_chain", conn.ChainID, "config_chain", cfg.Network.ChainID)
		os.Exit(1)
	}
	if err := client.Verify(ctx); err != nil {
		logger.Error("contract verification failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Contract:   %s\n", cfg.Network.ContractAddress)
	fmt.Printf("Wallet:     %s\n", conn.Address.Hex())
	fmt.Printf("Chain ID:   %s\n\n", conn.ChainID)

	assets, err := client.Assets(ctx)
	if err != nil {
		logger.Error("failed to fetch assets", "error", err)
		os.Exit(1)
	}
	fmt.Println("Assets:")
	for _, a := range assets {
		price, err := client.CurrentPrice(ctx, a.ID)
		priceStr := "n/a"
		if err == nil {
			priceStr = types.ScalePrice(price, a.Decimals).String()
		}
		fmt.Printf("  [%d] %-6s active=%-5v price=%s\n", a.ID, a.Symbol, a.Active, priceStr)
	}

	windows, err := client.TimeWindows(ctx)
	if err != nil {
		logger.Error("failed to fetch time windows", "error", err)
		os.Exit(1)
	}
	fmt.Println("\nTime windows:")
	for _, tw := range windows {
		fmt.Printf("  [%d] %-10s duration=%-8s multiplier=%sx active=%v\n",
			tw.ID, tw.Name, tw.Duration, types.Multiplier(tw.Multiplier).StringFixed(2), tw.Active)
	}

	ptypes, err := client.PredictionTypes(ctx)
	if err != nil {
		logger.Error("failed to fetch prediction types", "error", err)
		os.Exit(1)
	}
	fmt.Println("\nPrediction types:")
	for _, pt := range ptypes {
		fmt.Printf("  [%d] %-14s bet=[%s, %s] ETH multiplier=%sx active=%v\n",
			pt.ID, pt.Name, types.WeiToEther(pt.MinBet), types.WeiToEther(pt.MaxBet),
			types.Multiplier(pt.Multiplier).StringFixed(2), pt.Active)
	}

	ids, err := client.UserPredictionIDs(ctx, conn.Address)
	if err != nil {
		logger.Error("failed to fetch predictions", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\nPredictions (%d):\n", len(ids))
	now := time.Now()
	for _, id := range ids {
		p, err := client.Prediction(ctx, id)
		if err != nil {
			fmt.Printf("  [%d] fetch failed: %v\n", id, err)
			continue
		}
		eligible := false
		if !p.Resolved {
			eligible, _ = client.CanResolve(ctx, id)
		}
		fmt.Printf("  [%d] %s bet=%s ETH state=%s resolves=%s\n",
			p.ID, p.Direction, types.WeiToEther(p.BetAmount),
			p.State(now, eligible), p.ResolvesAt.Format(time.RFC3339))
	}

	stats, err := client.UserStats(ctx, conn.Address)
	if err != nil {
		logger.Error("failed to fetch stats", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\nStats: %d predictions, %d wins (%.1f%%), bet %s ETH, won %s ETH, streak %d (best %d)\n",
		stats.TotalPredictions, stats.Wins, stats.WinRate(),
		types.WeiToEther(stats.TotalBet), types.WeiToEther(stats.TotalWon),
		stats.WinStreak, stats.BestWinStreak)
}
