package api

import (
	"time"

	"pricepredict/internal/config"
	"pricepredict/internal/tracker"
)

// SessionProvider gives the dashboard access to the tracked session.
// *engine.Engine implements it.
type SessionProvider interface {
	Tracker() *tracker.Tracker
}

// BuildSnapshot aggregates tracker state into a dashboard snapshot.
func BuildSnapshot(provider SessionProvider, cfg config.Config) DashboardSnapshot {
	now := time.Now().UTC()
	snap := DashboardSnapshot{
		Timestamp: now,
		ChainID:   cfg.Network.ChainID,
		Active:    []PredictionView{},
		History:   []PredictionView{},
		Prices:    map[string]string{},
		Config:    NewConfigSummary(cfg),
	}

	tr := provider.Tracker()
	if tr == nil {
		return snap
	}

	if addr, ok := tr.Connection(); ok {
		snap.Connected = true
		snap.Address = addr.Hex()
	}
	snap.LastSyncAt = tr.LastSyncAt()

	catalog := tr.Catalog()
	prices := tr.Prices()
	snap.Catalog = NewCatalogView(catalog, prices)
	if catalog != nil {
		for _, a := range catalog.Assets {
			if price, ok := prices[a.ID]; ok {
				snap.Prices[a.Symbol] = feedPriceString(price, a.Decimals)
			}
		}
	}

	for _, p := range tr.Active() {
		snap.Active = append(snap.Active, NewPredictionView(p, catalog, tr.Eligible(p.ID), now))
	}
	for _, p := range tr.History() {
		snap.History = append(snap.History, NewPredictionView(p, catalog, false, now))
	}

	snap.Stats = NewStatsView(tr.Stats())
	for _, e := range tr.Leaderboard() {
		snap.Leaderboard = append(snap.Leaderboard, LeaderboardRow{
			Rank:        e.Rank,
			Address:     e.Address.Hex(),
			Wins:        e.Stats.Wins,
			WinRate:     e.Stats.WinRate(),
			TotalWonETH: ethString(e.Stats.TotalWon),
		})
	}

	return snap
}
