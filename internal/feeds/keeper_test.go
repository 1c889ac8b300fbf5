package feeds

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"pricepredict/internal/config"
	"pricepredict/pkg/types"
)

func testKeeper(baseURL string) *Keeper {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.FeedsConfig{
		SpotBaseURL:    baseURL,
		UpdateInterval: time.Minute,
		Symbols: map[string]string{
			"BTC": "bitcoin",
			"ETH": "ethereum",
		},
	}
	feeds := map[string]common.Address{
		"BTC": common.HexToAddress("0x01"),
		"ETH": common.HexToAddress("0x02"),
	}
	return New(cfg, nil, nil, feeds, logger)
}

func TestFetchSpot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path = %s, want /simple/price", r.URL.Path)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Errorf("vs_currencies = %q, want usd", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":65000.55},"ethereum":{"usd":3150.2}}`))
	}))
	defer srv.Close()

	k := testKeeper(srv.URL)
	quotes, err := k.fetchSpot(context.Background())
	if err != nil {
		t.Fatalf("fetchSpot: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %d entries, want 2", len(quotes))
	}
	if !quotes["bitcoin"].USD.Equal(decimal.RequireFromString("65000.55")) {
		t.Errorf("bitcoin = %s, want 65000.55", quotes["bitcoin"].USD)
	}
}

func TestFetchSpotBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	k := testKeeper(srv.URL)
	if _, err := k.fetchSpot(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestAnswerScaling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		price string
		want  string
	}{
		{"65000.55", "6500055000000"},
		{"0.00000001", "1"},
		{"3150.2", "315020000000"},
	}
	for _, tc := range cases {
		got := types.UnscalePrice(decimal.RequireFromString(tc.price), FeedDecimals)
		if got.String() != tc.want {
			t.Errorf("UnscalePrice(%s) = %s, want %s", tc.price, got, tc.want)
		}
	}
}
