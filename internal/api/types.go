package api

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"pricepredict/internal/config"
	"pricepredict/pkg/types"
)

// DashboardSnapshot represents the complete dashboard state
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Session
	Connected  bool      `json:"connected"`
	Address    string    `json:"address,omitempty"`
	ChainID    int64     `json:"chain_id"`
	LastSyncAt time.Time `json:"last_sync_at,omitempty"`

	// Catalog
	Catalog *CatalogView `json:"catalog,omitempty"`

	// Predictions, newest first
	Active  []PredictionView `json:"active"`
	History []PredictionView `json:"history"`

	// Latest feed prices keyed by asset symbol, human units
	Prices map[string]string `json:"prices"`

	Stats       StatsView        `json:"stats"`
	Leaderboard []LeaderboardRow `json:"leaderboard"`

	Config ConfigSummary `json:"config"`
}

// CatalogView is the contract catalog in display form.
type CatalogView struct {
	Assets          []AssetView          `json:"assets"`
	TimeWindows     []TimeWindowView     `json:"time_windows"`
	PredictionTypes []PredictionTypeView `json:"prediction_types"`
	MaxActive       int                  `json:"max_active"`
	FetchedAt       time.Time            `json:"fetched_at"`
}

type AssetView struct {
	ID       uint64 `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Active   bool   `json:"active"`
	Price    string `json:"price,omitempty"` // latest feed price, human units
}

type TimeWindowView struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Duration   string `json:"duration"`
	Multiplier string `json:"multiplier"` // e.g. "1.50x"
	Active     bool   `json:"active"`
}

type PredictionTypeView struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	MinBet         string `json:"min_bet"` // ETH
	MaxBet         string `json:"max_bet"` // ETH
	Multiplier     string `json:"multiplier"`
	RequiresTarget bool   `json:"requires_target"`
	Active         bool   `json:"active"`
}

// PredictionView is one prediction in display form. Amounts are ETH
// strings; prices are human units scaled by the asset's feed decimals.
type PredictionView struct {
	ID          uint64    `json:"id"`
	Asset       string    `json:"asset"`
	TimeWindow  string    `json:"time_window"`
	Type        string    `json:"type"`
	Direction   string    `json:"direction"`
	BetETH      string    `json:"bet_eth"`
	StartPrice  string    `json:"start_price"`
	TargetPrice string    `json:"target_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvesAt  time.Time `json:"resolves_at"`
	State       string    `json:"state"`
	RewardETH   string    `json:"reward_eth,omitempty"`
}

// StatsView is the wallet's aggregate record in display form.
type StatsView struct {
	TotalPredictions uint64  `json:"total_predictions"`
	Wins             uint64  `json:"wins"`
	WinRate          float64 `json:"win_rate"`
	TotalBetETH      string  `json:"total_bet_eth"`
	TotalWonETH      string  `json:"total_won_eth"`
	WinStreak        uint64  `json:"win_streak"`
	BestWinStreak    uint64  `json:"best_win_streak"`
}

// LeaderboardRow is one row of the top-winners board.
type LeaderboardRow struct {
	Rank        int     `json:"rank"`
	Address     string  `json:"address"`
	Wins        uint64  `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	TotalWonETH string  `json:"total_won_eth"`
}

// ConfigSummary exposes the operational parameters the dashboard shows.
type ConfigSummary struct {
	RPCURL          string `json:"rpc_url"`
	ChainID         int64  `json:"chain_id"`
	ContractAddress string `json:"contract_address"`
	PollInterval    string `json:"poll_interval"`
	MaxBatch        int    `json:"max_batch"`
}

// NewConfigSummary creates config summary from config
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		RPCURL:          cfg.Network.RPCURL,
		ChainID:         cfg.Network.ChainID,
		ContractAddress: cfg.Network.ContractAddress,
		PollInterval:    cfg.Tracker.PollInterval.String(),
		MaxBatch:        cfg.Tracker.MaxBatch,
	}
}

// ethString formats a wei amount as a trimmed ETH decimal.
func ethString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return types.WeiToEther(wei).String()
}

// feedPriceString formats a fixed-point feed price in human units.
func feedPriceString(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return ""
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// multiplierString renders a scaled multiplier like "1.50x".
func multiplierString(scaled uint64) string {
	return types.Multiplier(scaled).StringFixed(2) + "x"
}

// NewCatalogView converts the catalog, attaching latest prices.
func NewCatalogView(c *types.Catalog, prices map[uint64]*big.Int) *CatalogView {
	if c == nil {
		return nil
	}
	view := &CatalogView{
		MaxActive: c.MaxActive,
		FetchedAt: c.FetchedAt,
	}
	for _, a := range c.Assets {
		view.Assets = append(view.Assets, AssetView{
			ID:       a.ID,
			Symbol:   a.Symbol,
			Decimals: a.Decimals,
			Active:   a.Active,
			Price:    feedPriceString(prices[a.ID], a.Decimals),
		})
	}
	for _, w := range c.TimeWindows {
		view.TimeWindows = append(view.TimeWindows, TimeWindowView{
			ID:         w.ID,
			Name:       w.Name,
			Duration:   w.Duration.String(),
			Multiplier: multiplierString(w.Multiplier),
			Active:     w.Active,
		})
	}
	for _, pt := range c.PredictionTypes {
		view.PredictionTypes = append(view.PredictionTypes, PredictionTypeView{
			ID:             pt.ID,
			Name:           pt.Name,
			MinBet:         ethString(pt.MinBet),
			MaxBet:         ethString(pt.MaxBet),
			Multiplier:     multiplierString(pt.Multiplier),
			RequiresTarget: pt.RequiresTarget(),
			Active:         pt.Active,
		})
	}
	return view
}

// NewPredictionView converts one prediction, resolving catalog names.
func NewPredictionView(p types.Prediction, c *types.Catalog, eligible bool, now time.Time) PredictionView {
	view := PredictionView{
		ID:         p.ID,
		Asset:      catalogAssetName(c, p.AssetID),
		Direction:  string(p.Direction),
		BetETH:     ethString(p.BetAmount),
		CreatedAt:  p.CreatedAt,
		ResolvesAt: p.ResolvesAt,
		State:      string(p.State(now, eligible)),
	}
	var decimals uint8
	if c != nil {
		if a, ok := c.AssetByID(p.AssetID); ok {
			decimals = a.Decimals
		}
		if w, ok := c.TimeWindowByID(p.TimeWindowID); ok {
			view.TimeWindow = w.Name
		}
		if pt, ok := c.PredictionTypeByID(p.PredictionTypeID); ok {
			view.Type = pt.Name
		}
	}
	view.StartPrice = feedPriceString(p.StartPrice, decimals)
	if p.TargetPrice != nil {
		view.TargetPrice = feedPriceString(p.TargetPrice, decimals)
	}
	if p.Resolved && p.Won {
		view.RewardETH = ethString(p.Reward)
	}
	return view
}

func catalogAssetName(c *types.Catalog, id uint64) string {
	if c != nil {
		if a, ok := c.AssetByID(id); ok {
			return a.Symbol
		}
	}
	return ""
}

// NewStatsView converts aggregate stats.
func NewStatsView(s types.UserStats) StatsView {
	return StatsView{
		TotalPredictions: s.TotalPredictions,
		Wins:             s.Wins,
		WinRate:          s.WinRate(),
		TotalBetETH:      ethString(s.TotalBet),
		TotalWonETH:      ethString(s.TotalWon),
		WinStreak:        s.WinStreak,
		BestWinStreak:    s.BestWinStreak,
	}
}
