// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the client — catalog entities
// (assets, time windows, prediction types), predictions, user statistics,
// and the parameter structs for submitting bets. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Direction is the side of a price prediction: the price will rise (UP)
// or fall (DOWN) within the chosen time window.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Bool returns the on-chain encoding of the direction (true = UP).
func (d Direction) Bool() bool {
	return d == DirectionUp
}

// DirectionFromBool converts the on-chain encoding back to a Direction.
func DirectionFromBool(up bool) Direction {
	if up {
		return DirectionUp
	}
	return DirectionDown
}

// PredictionState is the client-observed lifecycle stage of a prediction:
//
//	Active   — unresolved, resolution time not yet reached
//	Eligible — unresolved, resolution time passed, a resolve call is valid
//	Won/Lost — resolved, immutable from here on
type PredictionState string

const (
	StateActive   PredictionState = "ACTIVE"
	StateEligible PredictionState = "ELIGIBLE"
	StateWon      PredictionState = "WON"
	StateLost     PredictionState = "LOST"
)

// MultiplierScale is the fixed-point scale for reward and window multipliers
// as stored on chain (10000 = 1.00x).
const MultiplierScale = 10000

// ————————————————————————————————————————————————————————————————————————
// Catalog entities
// ————————————————————————————————————————————————————————————————————————
// The catalog is fetched once per successful connection and treated as
// immutable for the session. Active flags reflect admin state on the ledger
// and only change via a full refetch.

// Asset is one predictable asset: a symbol backed by a Chainlink-style
// price feed.
type Asset struct {
	ID               uint64         // sequence index, stable for the session
	Symbol           string         // e.g. "ETH/USD"
	PriceFeed        common.Address // aggregator feed contract
	Decimals         uint8          // fixed-point scale of feed prices
	Active           bool
	TotalPredictions uint64   // lifetime prediction count on this asset
	TotalVolume      *big.Int // lifetime wagered volume in wei
}

// TimeWindow is one selectable prediction duration.
type TimeWindow struct {
	ID         uint64
	Name       string        // display name, e.g. "5 min"
	Duration   time.Duration // window length
	Multiplier uint64        // reward multiplier, scaled by MultiplierScale
	Active     bool
}

// PredictionType is one selectable bet style (up/down, target price, …)
// with its own bet bounds and reward multiplier.
type PredictionType struct {
	ID         uint64
	Name       string
	Active     bool
	MinBet     *big.Int // minimum bet in wei
	MaxBet     *big.Int // maximum bet in wei
	Multiplier uint64   // reward multiplier, scaled by MultiplierScale
}

// RequiresTarget reports whether this prediction type needs a target price.
// The contract identifies target-price types by name.
func (pt PredictionType) RequiresTarget() bool {
	return pt.Name == "Target Price"
}

// Catalog is the fetched-once configuration set. All three slices are
// indexed by entity ID (ids are dense sequence indexes on the ledger).
type Catalog struct {
	Assets          []Asset
	TimeWindows     []TimeWindow
	PredictionTypes []PredictionType
	MaxActive       int // max simultaneous unresolved predictions per user
	FetchedAt       time.Time
}

// AssetByID returns the asset with the given id, or false if unknown.
func (c *Catalog) AssetByID(id uint64) (Asset, bool) {
	if id >= uint64(len(c.Assets)) {
		return Asset{}, false
	}
	return c.Assets[id], true
}

// TimeWindowByID returns the time window with the given id, or false.
func (c *Catalog) TimeWindowByID(id uint64) (TimeWindow, bool) {
	if id >= uint64(len(c.TimeWindows)) {
		return TimeWindow{}, false
	}
	return c.TimeWindows[id], true
}

// PredictionTypeByID returns the prediction type with the given id, or false.
func (c *Catalog) PredictionTypeByID(id uint64) (PredictionType, bool) {
	if id >= uint64(len(c.PredictionTypes)) {
		return PredictionType{}, false
	}
	return c.PredictionTypes[id], true
}

// ————————————————————————————————————————————————————————————————————————
// Predictions
// ————————————————————————————————————————————————————————————————————————

// Prediction is the client's copy of one ledger-owned prediction.
// Once Resolved is true the entry is immutable and is never refetched.
//
// TargetPrice is nil for prediction types without a target. The contract
// encodes absence as zero; the ledger client maps that to nil at this
// boundary so a missing target is never confused with a numeric value.
type Prediction struct {
	ID               uint64
	Owner            common.Address
	AssetID          uint64
	TimeWindowID     uint64
	PredictionTypeID uint64
	BetAmount        *big.Int // wei
	StartPrice       *big.Int // feed fixed-point, scale = asset decimals
	TargetPrice      *big.Int // nil when the type has no target
	Direction        Direction
	CreatedAt        time.Time
	ResolvesAt       time.Time
	Resolved         bool
	Won              bool     // meaningful only when Resolved
	Reward           *big.Int // wei, zero unless resolved and won
}

// State derives the lifecycle stage at the given instant. The eligible
// argument is the resolve-eligibility flag from the last reconciliation;
// the time comparison covers windows that lapse between reconciles.
func (p *Prediction) State(now time.Time, eligible bool) PredictionState {
	if p.Resolved {
		if p.Won {
			return StateWon
		}
		return StateLost
	}
	if eligible || !now.Before(p.ResolvesAt) {
		return StateEligible
	}
	return StateActive
}

// PredictionParams is the user input for one submit. BetAmount is in wei.
// TargetPrice must be non-nil exactly when the chosen type requires one.
type PredictionParams struct {
	AssetID          uint64
	TimeWindowID     uint64
	PredictionTypeID uint64
	Direction        Direction
	BetAmount        *big.Int
	TargetPrice      *big.Int
}

// BatchTotal returns the exact sum of bet amounts across all entries.
// This is the value attached to a batch transaction: no rounding, no fee.
func BatchTotal(list []PredictionParams) *big.Int {
	total := new(big.Int)
	for _, p := range list {
		if p.BetAmount != nil {
			total.Add(total, p.BetAmount)
		}
	}
	return total
}

// ————————————————————————————————————————————————————————————————————————
// Derived aggregates
// ————————————————————————————————————————————————————————————————————————
// Stats and leaderboard entries are owned entirely by the ledger. The client
// refetches them every reconciliation cycle rather than maintaining them
// incrementally, so a missed event can never cause permanent drift.

// UserStats is a per-identity aggregate maintained by the ledger.
type UserStats struct {
	TotalPredictions uint64
	Wins             uint64
	TotalBet         *big.Int // wei
	TotalWon         *big.Int // wei
	WinStreak        uint64
	BestWinStreak    uint64
}

// WinRate returns the win percentage, 0 when no predictions exist.
func (s UserStats) WinRate() float64 {
	if s.TotalPredictions == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalPredictions) * 100
}

// LeaderboardEntry is one row of the ledger's top-winners board.
type LeaderboardEntry struct {
	Rank    int
	Address common.Address
	Stats   UserStats
}

// ————————————————————————————————————————————————————————————————————————
// Unit conversion
// ————————————————————————————————————————————————————————————————————————

var weiPerEther = decimal.New(1, 18)

// WeiToEther converts a wei amount to a decimal ether value for display.
// nil is treated as zero.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEther)
}

// EtherToWei converts a decimal ether value to wei. It fails on amounts
// with sub-wei precision rather than rounding a payable value.
func EtherToWei(eth decimal.Decimal) (*big.Int, error) {
	wei := eth.Mul(weiPerEther)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("amount %s has sub-wei precision", eth)
	}
	return wei.BigInt(), nil
}

// ScalePrice converts a feed fixed-point price to a decimal using the
// asset's feed scale. nil is treated as zero.
func ScalePrice(price *big.Int, decimals uint8) decimal.Decimal {
	if price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(price, -int32(decimals))
}

// UnscalePrice converts a decimal price to feed fixed-point representation,
// truncating precision beyond the feed's scale.
func UnscalePrice(price decimal.Decimal, decimals uint8) *big.Int {
	return price.Shift(int32(decimals)).Truncate(0).BigInt()
}

// Multiplier formats a scaled multiplier (10000 = 1.00x) for display.
func Multiplier(scaled uint64) decimal.Decimal {
	return decimal.New(int64(scaled), 0).Div(decimal.New(MultiplierScale, 0))
}
