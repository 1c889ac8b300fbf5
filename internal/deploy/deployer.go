package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"pricepredict/internal/config"
	"pricepredict/internal/ledger"
	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
)

// Artifact names as produced by the contract build.
const (
	gameArtifact = "PricePrediction"
	feedArtifact = "MockV3Aggregator"
)

// Deployer deploys the prediction contract with its mock feeds and
// seeds the catalog from config.
type Deployer struct {
	cfg    config.Config
	eth    *ethclient.Client
	conn   *wallet.Connection
	logger *slog.Logger
}

func NewDeployer(cfg config.Config, eth *ethclient.Client, conn *wallet.Connection, logger *slog.Logger) *Deployer {
	return &Deployer{
		cfg:    cfg,
		eth:    eth,
		conn:   conn,
		logger: logger.With("component", "deployer"),
	}
}

// Run performs the full deployment and returns the persisted record.
func (d *Deployer) Run(ctx context.Context, network string) (*Record, error) {
	feeds, err := d.deployFeeds(ctx)
	if err != nil {
		return nil, err
	}

	game, err := LoadArtifact(d.cfg.Deploy.ArtifactsDir, gameArtifact)
	if err != nil {
		return nil, err
	}
	opts, err := d.conn.TransactOpts()
	if err != nil {
		return nil, fmt.Errorf("transact opts: %w", err)
	}
	addr, tx, err := game.Deploy(ctx, opts, d.eth)
	if err != nil {
		return nil, err
	}
	d.logger.Info("contract deployed", "address", addr.Hex(), "tx", tx.Hash().Hex())

	if err := d.seedCatalog(ctx, addr, feeds); err != nil {
		return nil, err
	}

	record := &Record{
		ContractName:    gameArtifact,
		Network:         network,
		ChainID:         d.conn.ChainID.Int64(),
		ContractAddress: addr.Hex(),
		DeployedAt:      time.Now().UTC(),
	}
	if len(feeds) > 0 {
		record.MockFeeds = make(map[string]string, len(feeds))
		for symbol, feed := range feeds {
			record.MockFeeds[symbol] = feed.Hex()
		}
	}
	if err := Save(d.cfg.Deploy.RecordFile, record); err != nil {
		return nil, err
	}
	d.logger.Info("deployment record written", "file", d.cfg.Deploy.RecordFile)
	return record, nil
}

// deployFeeds creates one mock aggregator per configured asset, seeded
// with its initial price.
func (d *Deployer) deployFeeds(ctx context.Context) (map[string]common.Address, error) {
	if len(d.cfg.Deploy.Assets) == 0 {
		return nil, nil
	}

	mock, err := LoadArtifact(d.cfg.Deploy.ArtifactsDir, feedArtifact)
	if err != nil {
		return nil, err
	}

	feeds := make(map[string]common.Address, len(d.cfg.Deploy.Assets))
	for _, asset := range d.cfg.Deploy.Assets {
		price, err := decimal.NewFromString(asset.InitialPrice)
		if err != nil {
			return nil, fmt.Errorf("asset %s: invalid initial price %q", asset.Symbol, asset.InitialPrice)
		}
		answer := types.UnscalePrice(price, asset.Decimals)

		opts, err := d.conn.TransactOpts()
		if err != nil {
			return nil, fmt.Errorf("transact opts: %w", err)
		}
		addr, _, err := mock.Deploy(ctx, opts, d.eth, asset.Decimals, answer)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.Symbol, err)
		}
		feeds[asset.Symbol] = addr
		d.logger.Info("mock feed deployed",
			"symbol", asset.Symbol,
			"address", addr.Hex(),
			"initial_price", asset.InitialPrice)
	}
	return feeds, nil
}

// seedCatalog registers the configured assets, time windows and
// prediction types on the freshly deployed contract.
func (d *Deployer) seedCatalog(ctx context.Context, contract common.Address, feeds map[string]common.Address) error {
	client := ledger.New(d.eth, contract, d.logger)

	for _, asset := range d.cfg.Deploy.Assets {
		feed, ok := feeds[asset.Symbol]
		if !ok {
			return fmt.Errorf("asset %s has no deployed feed", asset.Symbol)
		}
		if _, err := client.AddAsset(ctx, d.conn, asset.Symbol, feed, asset.Decimals); err != nil {
			return fmt.Errorf("add asset %s: %w", asset.Symbol, err)
		}
		d.logger.Info("asset added", "symbol", asset.Symbol)
	}

	for _, window := range d.cfg.Deploy.TimeWindows {
		if _, err := client.AddTimeWindow(ctx, d.conn, window.Name, window.Duration, window.Multiplier); err != nil {
			return fmt.Errorf("add time window %s: %w", window.Name, err)
		}
		d.logger.Info("time window added", "name", window.Name)
	}

	for _, pt := range d.cfg.Deploy.PredictionTypes {
		minBet, err := parseEther(pt.MinBet)
		if err != nil {
			return fmt.Errorf("prediction type %s: %w", pt.Name, err)
		}
		maxBet, err := parseEther(pt.MaxBet)
		if err != nil {
			return fmt.Errorf("prediction type %s: %w", pt.Name, err)
		}
		if _, err := client.AddPredictionType(ctx, d.conn, pt.Name, minBet, maxBet, pt.Multiplier); err != nil {
			return fmt.Errorf("add prediction type %s: %w", pt.Name, err)
		}
		d.logger.Info("prediction type added", "name", pt.Name)
	}
	return nil
}

func parseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	return types.EtherToWei(d)
}
