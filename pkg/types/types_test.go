package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDirectionConversions(t *testing.T) {
	t.Parallel()

	if !DirectionUp.Bool() {
		t.Error("UP must encode as true")
	}
	if DirectionDown.Bool() {
		t.Error("DOWN must encode as false")
	}
	if DirectionFromBool(true) != DirectionUp {
		t.Error("true must decode as UP")
	}
	if DirectionFromBool(false) != DirectionDown {
		t.Error("false must decode as DOWN")
	}
}

func TestPredictionState(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		p        Prediction
		eligible bool
		want     PredictionState
	}{
		{
			name: "open window is active",
			p:    Prediction{ResolvesAt: now.Add(time.Hour)},
			want: StateActive,
		},
		{
			name: "lapsed window is eligible even with stale flag",
			p:    Prediction{ResolvesAt: now.Add(-time.Minute)},
			want: StateEligible,
		},
		{
			name:     "flag promotes before the clock",
			p:        Prediction{ResolvesAt: now.Add(time.Minute)},
			eligible: true,
			want:     StateEligible,
		},
		{
			name: "resolved win",
			p:    Prediction{Resolved: true, Won: true, ResolvesAt: now.Add(-time.Hour)},
			want: StateWon,
		},
		{
			name: "resolved loss",
			p:    Prediction{Resolved: true, Won: false, ResolvesAt: now.Add(-time.Hour)},
			want: StateLost,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.p.State(now, tt.eligible); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBatchTotalExact(t *testing.T) {
	t.Parallel()

	// Amounts chosen so float math would lose precision.
	a, _ := new(big.Int).SetString("100000000000000001", 10)
	b, _ := new(big.Int).SetString("200000000000000002", 10)
	c, _ := new(big.Int).SetString("300000000000000003", 10)

	total := BatchTotal([]PredictionParams{
		{BetAmount: a}, {BetAmount: b}, {BetAmount: c},
	})
	want, _ := new(big.Int).SetString("600000000000000006", 10)
	if total.Cmp(want) != 0 {
		t.Errorf("BatchTotal = %s, want %s", total, want)
	}

	if BatchTotal(nil).Sign() != 0 {
		t.Error("empty batch must total zero")
	}
	if BatchTotal([]PredictionParams{{BetAmount: nil}}).Sign() != 0 {
		t.Error("nil amounts must not panic and count as zero")
	}
}

func TestBatchTotalDoesNotMutateEntries(t *testing.T) {
	t.Parallel()

	a := big.NewInt(100)
	BatchTotal([]PredictionParams{{BetAmount: a}, {BetAmount: big.NewInt(50)}})
	if a.Int64() != 100 {
		t.Errorf("entry mutated: %s", a)
	}
}

func TestWeiEtherRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eth string
		wei string
	}{
		{"1", "1000000000000000000"},
		{"0.01", "10000000000000000"},
		{"0.000000000000000001", "1"},
		{"123.456", "123456000000000000000"},
	}
	for _, tt := range tests {
		wei, err := EtherToWei(decimal.RequireFromString(tt.eth))
		if err != nil {
			t.Fatalf("EtherToWei(%s): %v", tt.eth, err)
		}
		if wei.String() != tt.wei {
			t.Errorf("EtherToWei(%s) = %s, want %s", tt.eth, wei, tt.wei)
		}
		if back := WeiToEther(wei); !back.Equal(decimal.RequireFromString(tt.eth)) {
			t.Errorf("WeiToEther(%s) = %s, want %s", wei, back, tt.eth)
		}
	}
}

func TestEtherToWeiRejectsSubWei(t *testing.T) {
	t.Parallel()

	if _, err := EtherToWei(decimal.RequireFromString("0.0000000000000000001")); err == nil {
		t.Fatal("sub-wei amount must error, not round")
	}
}

func TestPriceScaling(t *testing.T) {
	t.Parallel()

	raw := big.NewInt(6500055000000) // 65000.55 at 8 decimals
	if got := ScalePrice(raw, 8); !got.Equal(decimal.RequireFromString("65000.55")) {
		t.Errorf("ScalePrice = %s, want 65000.55", got)
	}
	if got := UnscalePrice(decimal.RequireFromString("65000.55"), 8); got.Cmp(raw) != 0 {
		t.Errorf("UnscalePrice = %s, want %s", got, raw)
	}
	if ScalePrice(nil, 8).Sign() != 0 {
		t.Error("nil price must scale to zero")
	}
	// Precision beyond the feed scale truncates.
	if got := UnscalePrice(decimal.RequireFromString("0.000000001"), 8); got.Sign() != 0 {
		t.Errorf("sub-scale price = %s, want 0", got)
	}
}

func TestMultiplierDisplay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scaled uint64
		want   string
	}{
		{10000, "1.00"},
		{15000, "1.50"},
		{30000, "3.00"},
		{11000, "1.10"},
	}
	for _, tt := range tests {
		if got := Multiplier(tt.scaled).StringFixed(2); got != tt.want {
			t.Errorf("Multiplier(%d) = %s, want %s", tt.scaled, got, tt.want)
		}
	}
}

func TestRequiresTarget(t *testing.T) {
	t.Parallel()

	if !(PredictionType{Name: "Target Price"}).RequiresTarget() {
		t.Error("Target Price type must require a target")
	}
	if (PredictionType{Name: "Up/Down"}).RequiresTarget() {
		t.Error("Up/Down type must not require a target")
	}
}

func TestCatalogLookups(t *testing.T) {
	t.Parallel()

	c := Catalog{
		Assets:          []Asset{{ID: 0, Symbol: "BTC"}, {ID: 1, Symbol: "ETH"}},
		TimeWindows:     []TimeWindow{{ID: 0, Name: "1 Hour"}},
		PredictionTypes: []PredictionType{{ID: 0, Name: "Up/Down"}},
	}
	if a, ok := c.AssetByID(1); !ok || a.Symbol != "ETH" {
		t.Errorf("AssetByID(1) = %+v, %v", a, ok)
	}
	if _, ok := c.AssetByID(2); ok {
		t.Error("AssetByID out of range must report false")
	}
	if _, ok := c.TimeWindowByID(5); ok {
		t.Error("TimeWindowByID out of range must report false")
	}
	if _, ok := c.PredictionTypeByID(9); ok {
		t.Error("PredictionTypeByID out of range must report false")
	}
}

func TestWinRate(t *testing.T) {
	t.Parallel()

	if got := (UserStats{}).WinRate(); got != 0 {
		t.Errorf("empty stats win rate = %v, want 0", got)
	}
	s := UserStats{TotalPredictions: 8, Wins: 6}
	if got := s.WinRate(); got != 75 {
		t.Errorf("win rate = %v, want 75", got)
	}
}
