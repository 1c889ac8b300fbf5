package api

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pricepredict/internal/config"
	"pricepredict/internal/tracker"
)

func testHandlers(cfg config.Config) *Handlers {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	provider := &staticProvider{tr: tracker.New(cfg, nil, logger)}
	return NewHandlers(provider, cfg, NewHub(logger), logger)
}

// staticProvider serves a tracker that was never connected; write
// actions through it fail before any ledger call.
type staticProvider struct {
	tr *tracker.Tracker
}

func (p *staticProvider) Tracker() *tracker.Tracker { return p.tr }

func baseConfig() config.Config {
	return config.Config{
		Network: config.NetworkConfig{ChainID: 31337},
		Tracker: config.TrackerConfig{PollInterval: 10 * time.Second, MaxBatch: 10},
	}
}

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{
			name:   "empty origin is allowed",
			origin: "",
			want:   true,
		},
		{
			name:   "any origin allowed without allowlist",
			origin: "http://localhost:8080",
			want:   true,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://dash.example.com",
			allowed: []string{"https://dash.example.com"},
			want:    true,
		},
		{
			name:    "allowlist match is case-insensitive",
			origin:  "https://DASH.example.com",
			allowed: []string{"https://dash.example.com"},
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			allowed: []string{"https://dash.example.com"},
			want:    false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			cfg.Dashboard.AllowedOrigins = tt.allowed
			h := testHandlers(cfg)

			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := h.isOriginAllowed(r); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestHandleSubmitRejectsBadBody(t *testing.T) {
	t.Parallel()
	h := testHandlers(baseConfig())

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing bet", `{"asset_id":0,"direction":"UP"}`},
		{"bad bet", `{"asset_id":0,"direction":"UP","bet_eth":"lots"}`},
		{"sub-wei bet", `{"asset_id":0,"direction":"UP","bet_eth":"0.0000000000000000001"}`},
		{"bad target", `{"asset_id":0,"direction":"UP","bet_eth":"0.1","target_price":"??"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(tt.body))
			h.HandleSubmit(w, r)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleSubmitWithoutSession(t *testing.T) {
	t.Parallel()
	h := testHandlers(baseConfig())

	w := httptest.NewRecorder()
	body := `{"asset_id":0,"direction":"UP","bet_eth":"0.05"}`
	r := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	h.HandleSubmit(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error == "" {
		t.Error("error response missing message")
	}
}

func TestHandleResolveInvalidID(t *testing.T) {
	t.Parallel()
	h := testHandlers(baseConfig())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/predictions/abc/resolve", nil)
	r.SetPathValue("id", "abc")
	h.HandleResolve(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestToParamsScalesTarget(t *testing.T) {
	t.Parallel()
	h := testHandlers(baseConfig())

	params, err := h.toParams(submitRequest{
		AssetID:     0,
		Direction:   "down",
		BetETH:      "0.25",
		TargetPrice: "65000.5",
	})
	if err != nil {
		t.Fatalf("toParams: %v", err)
	}
	if got, want := params.BetAmount.String(), "250000000000000000"; got != want {
		t.Errorf("bet wei = %s, want %s", got, want)
	}
	// No catalog loaded, so the default feed scale of 8 applies.
	want := new(big.Int).SetUint64(6500050000000)
	if params.TargetPrice.Cmp(want) != 0 {
		t.Errorf("target = %s, want %s", params.TargetPrice, want)
	}
	if params.Direction != "DOWN" {
		t.Errorf("direction = %s, want DOWN", params.Direction)
	}
}

func TestHandleSnapshotEmptySession(t *testing.T) {
	t.Parallel()
	h := testHandlers(baseConfig())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	h.HandleSnapshot(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var snap DashboardSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Connected {
		t.Error("snapshot reports connected with no session")
	}
	if snap.ChainID != 31337 {
		t.Errorf("chain id = %d, want 31337", snap.ChainID)
	}
}
