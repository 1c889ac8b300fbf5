package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"pricepredict/internal/config"
	"pricepredict/internal/ledger"
	"pricepredict/internal/tracker"
	"pricepredict/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the handler, where config is in scope.
		return true
	},
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	provider SessionProvider
	cfg      config.Config
	hub      *Hub
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(provider SessionProvider, cfg config.Config, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		provider: provider,
		cfg:      cfg,
		hub:      hub,
		logger:   logger.With("component", "api-handlers"),
	}
}

// isOriginAllowed checks the request origin against the configured list.
// An empty list allows everything (local development).
func (h *Handlers) isOriginAllowed(r *http.Request) bool {
	if len(h.cfg.Dashboard.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Dashboard.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// HandleHealth returns a simple health check response
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleSnapshot returns the current dashboard state
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := BuildSnapshot(h.provider, h.cfg)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
}

// HandleWebSocket upgrades the connection and creates a new stream client
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.isOriginAllowed(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newStreamClient(h.hub, conn)

	// Send initial snapshot to the client
	snapshot := BuildSnapshot(h.provider, h.cfg)
	evt := DashboardEvent{
		Type: "snapshot",
		Data: snapshot,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal initial snapshot", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial snapshot to client")
	}
}

// submitRequest is a single prediction submission. Amounts are decimal
// strings: bet in ETH, target price in the asset's human units.
type submitRequest struct {
	AssetID          uint64 `json:"asset_id"`
	TimeWindowID     uint64 `json:"time_window_id"`
	PredictionTypeID uint64 `json:"prediction_type_id"`
	Direction        string `json:"direction"` // "UP" or "DOWN"
	BetETH           string `json:"bet_eth"`
	TargetPrice      string `json:"target_price,omitempty"`
}

type batchRequest struct {
	Predictions []submitRequest `json:"predictions"`
}

// HandleSubmit places a single prediction.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	params, err := h.toParams(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	hash, err := h.provider.Tracker().SubmitPrediction(r.Context(), params)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{TxHash: hash.Hex()})
}

// HandleSubmitBatch places several predictions in one transaction.
func (h *Handlers) HandleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	list := make([]types.PredictionParams, 0, len(req.Predictions))
	for i, entry := range req.Predictions {
		params, err := h.toParams(entry)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("entry %d: %w", i, err))
			return
		}
		list = append(list, params)
	}

	hash, err := h.provider.Tracker().SubmitBatch(r.Context(), list)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{TxHash: hash.Hex()})
}

// HandleResolve settles one prediction. The id comes from the URL path.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid prediction id"))
		return
	}

	hash, err := h.provider.Tracker().ResolvePrediction(r.Context(), id)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{TxHash: hash.Hex()})
}

// toParams converts a request into chain parameters, scaling the target
// price by the asset's feed decimals.
func (h *Handlers) toParams(req submitRequest) (types.PredictionParams, error) {
	bet, err := decimal.NewFromString(req.BetETH)
	if err != nil {
		return types.PredictionParams{}, fmt.Errorf("invalid bet amount %q", req.BetETH)
	}
	wei, err := types.EtherToWei(bet)
	if err != nil {
		return types.PredictionParams{}, err
	}

	params := types.PredictionParams{
		AssetID:          req.AssetID,
		TimeWindowID:     req.TimeWindowID,
		PredictionTypeID: req.PredictionTypeID,
		Direction:        types.Direction(strings.ToUpper(req.Direction)),
		BetAmount:        wei,
	}

	if req.TargetPrice != "" {
		target, err := decimal.NewFromString(req.TargetPrice)
		if err != nil {
			return types.PredictionParams{}, fmt.Errorf("invalid target price %q", req.TargetPrice)
		}
		var decimals uint8 = 8
		if catalog := h.provider.Tracker().Catalog(); catalog != nil {
			if a, ok := catalog.AssetByID(req.AssetID); ok {
				decimals = a.Decimals
			}
		}
		params.TargetPrice = types.UnscalePrice(target, decimals)
	}
	return params, nil
}

// writeActionError maps tracker and ledger failures onto HTTP statuses:
// local refusals are 409/422, connection problems 503, chain rejections
// keep their classification in the body.
func (h *Handlers) writeActionError(w http.ResponseWriter, err error) {
	if pe, ok := tracker.AsPrecondition(err); ok {
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: pe.Error(), Reason: string(pe.Reason)})
		return
	}
	if errors.Is(err, tracker.ErrNotConnected) || errors.Is(err, tracker.ErrNotInitialized) || errors.Is(err, tracker.ErrWrongChain) {
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	if we, ok := ledger.AsWriteError(err); ok {
		h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: we.Error(), Reason: string(we.Kind)})
		return
	}
	h.logger.Error("action failed", "error", err)
	h.writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
