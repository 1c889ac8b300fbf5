// Package feeds implements the feedkeeper, a sidecar for local networks
// that copies spot prices from a public REST API into the mock
// aggregator contracts the prediction ledger reads. Public networks use
// real oracle feeds and do not run a keeper.
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"pricepredict/internal/config"
	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
)

// FeedDecimals is the fixed-point scale of the mock aggregators.
const FeedDecimals = 8

const aggregatorABIJSON = `[
	{"type":"function","name":"updateAnswer","stateMutability":"nonpayable","inputs":[{"name":"_answer","type":"int256"}],"outputs":[]},
	{"type":"function","name":"latestAnswer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int256"}]}
]`

var aggregatorABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic(fmt.Sprintf("feeds: invalid aggregator abi: %v", err))
	}
	return parsed
}()

// spotQuote is the per-coin shape of the spot price API response.
type spotQuote struct {
	USD decimal.Decimal `json:"usd"`
}

// Keeper pushes spot prices into mock aggregator contracts on a cadence.
type Keeper struct {
	cfg        config.FeedsConfig
	httpClient *resty.Client
	eth        *ethclient.Client
	conn       *wallet.Connection
	feeds      map[string]common.Address // symbol -> aggregator address
	logger     *slog.Logger
}

// New creates a keeper for the given aggregator set. The feeds map comes
// from the deployment record written at contract deploy time.
func New(cfg config.FeedsConfig, eth *ethclient.Client, conn *wallet.Connection, feeds map[string]common.Address, logger *slog.Logger) *Keeper {
	client := resty.New().
		SetBaseURL(cfg.SpotBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Keeper{
		cfg:        cfg,
		httpClient: client,
		eth:        eth,
		conn:       conn,
		feeds:      feeds,
		logger:     logger.With("component", "feedkeeper"),
	}
}

// Run updates all feeds immediately, then on every tick until the
// context is cancelled.
func (k *Keeper) Run(ctx context.Context) {
	k.update(ctx)

	ticker := time.NewTicker(k.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.update(ctx)
		}
	}
}

func (k *Keeper) update(ctx context.Context) {
	quotes, err := k.fetchSpot(ctx)
	if err != nil {
		k.logger.Error("spot fetch failed", "error", err)
		return
	}

	for symbol, addr := range k.feeds {
		coinID, ok := k.cfg.Symbols[symbol]
		if !ok {
			k.logger.Warn("no spot mapping for feed", "symbol", symbol)
			continue
		}
		quote, ok := quotes[coinID]
		if !ok {
			k.logger.Warn("spot api returned no quote", "symbol", symbol, "coin", coinID)
			continue
		}
		if err := k.push(ctx, addr, quote.USD); err != nil {
			k.logger.Error("feed update failed", "symbol", symbol, "error", err)
			continue
		}
		k.logger.Info("feed updated", "symbol", symbol, "price_usd", quote.USD)
	}
}

// fetchSpot gets all configured coins in one request.
func (k *Keeper) fetchSpot(ctx context.Context) (map[string]spotQuote, error) {
	ids := make([]string, 0, len(k.cfg.Symbols))
	for _, coinID := range k.cfg.Symbols {
		ids = append(ids, coinID)
	}

	var quotes map[string]spotQuote
	resp, err := k.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           strings.Join(ids, ","),
			"vs_currencies": "usd",
		}).
		SetResult(&quotes).
		Get("/simple/price")
	if err != nil {
		return nil, fmt.Errorf("fetch spot prices: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch spot prices: status %d", resp.StatusCode())
	}
	return quotes, nil
}

// push writes one answer to a mock aggregator.
func (k *Keeper) push(ctx context.Context, aggregator common.Address, priceUSD decimal.Decimal) error {
	answer := types.UnscalePrice(priceUSD, FeedDecimals)

	opts, err := k.conn.TransactOpts()
	if err != nil {
		return fmt.Errorf("transact opts: %w", err)
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(aggregator, aggregatorABI, k.eth, k.eth, k.eth)
	tx, err := contract.Transact(opts, "updateAnswer", answer)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	if _, err := bind.WaitMined(ctx, k.eth, tx); err != nil {
		return fmt.Errorf("wait mined: %w", err)
	}
	return nil
}
