// Package tracker maintains a client-side view of one wallet's
// predictions and reconciles it against the ledger on a fixed cadence.
// Write actions are precondition-checked locally before any transaction
// is attempted, so a guaranteed revert never costs gas.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pricepredict/internal/config"
	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
)

// Ledger is the contract surface the tracker consumes. *ledger.Client
// satisfies it; tests substitute a fake.
type Ledger interface {
	Assets(ctx context.Context) ([]types.Asset, error)
	TimeWindows(ctx context.Context) ([]types.TimeWindow, error)
	PredictionTypes(ctx context.Context) ([]types.PredictionType, error)
	MaxActivePredictions(ctx context.Context) (int, error)
	CurrentPrice(ctx context.Context, assetID uint64) (*big.Int, error)
	UserPredictionIDs(ctx context.Context, owner common.Address) ([]uint64, error)
	Prediction(ctx context.Context, id uint64) (types.Prediction, error)
	CanResolve(ctx context.Context, id uint64) (bool, error)
	UserStats(ctx context.Context, owner common.Address) (types.UserStats, error)
	Leaderboard(ctx context.Context) ([]types.LeaderboardEntry, error)

	SubmitPrediction(ctx context.Context, conn *wallet.Connection, p types.PredictionParams) (common.Hash, error)
	SubmitBatch(ctx context.Context, conn *wallet.Connection, list []types.PredictionParams) (common.Hash, error)
	Resolve(ctx context.Context, conn *wallet.Connection, id uint64) (common.Hash, error)
}

// Event is a tracker state-change notification, consumed by the
// dashboard stream.
type Event struct {
	Kind         string    `json:"kind"` // initialized | reconciled | submitted | resolved | invalidated
	Timestamp    time.Time `json:"timestamp"`
	PredictionID uint64    `json:"prediction_id,omitempty"`
	TxHash       string    `json:"tx_hash,omitempty"`
	Count        int       `json:"count,omitempty"`
}

// Tracker holds the reconciled session state for a single wallet.
type Tracker struct {
	cfg           config.TrackerConfig
	requiredChain *big.Int
	ledger        Ledger
	logger        *slog.Logger
	events        chan Event

	mu          sync.Mutex
	conn        *wallet.Connection
	epoch       uint64 // bumped on every identity change; stale reconciles are discarded
	catalog     *types.Catalog
	predictions map[uint64]*types.Prediction
	eligible    map[uint64]bool
	prices      map[uint64]*big.Int
	stats       types.UserStats
	leaderboard []types.LeaderboardEntry
	lastSyncAt  time.Time
	syncing     bool
}

func New(cfg config.Config, lg Ledger, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:           cfg.Tracker,
		requiredChain: big.NewInt(cfg.Network.ChainID),
		ledger:        lg,
		logger:        logger.With("component", "tracker"),
		events:        make(chan Event, 64),
		predictions:   make(map[uint64]*types.Prediction),
		eligible:      make(map[uint64]bool),
		prices:        make(map[uint64]*big.Int),
	}
}

// Events exposes the notification stream. The channel is never closed;
// sends are non-blocking, so a slow consumer loses events rather than
// stalling reconciliation.
func (t *Tracker) Events() <-chan Event { return t.events }

func (t *Tracker) emit(ev Event) {
	ev.Timestamp = time.Now().UTC()
	select {
	case t.events <- ev:
	default:
	}
}

// Initialize binds the tracker to a connection and performs the
// all-or-nothing catalog fetch. On any fetch failure no partial catalog
// is retained and the tracker stays uninitialized.
func (t *Tracker) Initialize(ctx context.Context, conn *wallet.Connection) error {
	if conn == nil {
		return ErrNotConnected
	}
	if conn.ChainID == nil || conn.ChainID.Cmp(t.requiredChain) != 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrWrongChain, conn.ChainID, t.requiredChain)
	}

	assets, err := t.ledger.Assets(ctx)
	if err != nil {
		return fmt.Errorf("%w: assets: %v", ErrCatalogUnavailable, err)
	}
	windows, err := t.ledger.TimeWindows(ctx)
	if err != nil {
		return fmt.Errorf("%w: time windows: %v", ErrCatalogUnavailable, err)
	}
	ptypes, err := t.ledger.PredictionTypes(ctx)
	if err != nil {
		return fmt.Errorf("%w: prediction types: %v", ErrCatalogUnavailable, err)
	}
	maxActive, err := t.ledger.MaxActivePredictions(ctx)
	if err != nil {
		return fmt.Errorf("%w: max active: %v", ErrCatalogUnavailable, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.epoch++
	t.catalog = &types.Catalog{
		Assets:          assets,
		TimeWindows:     windows,
		PredictionTypes: ptypes,
		MaxActive:       maxActive,
		FetchedAt:       time.Now().UTC(),
	}
	t.predictions = make(map[uint64]*types.Prediction)
	t.eligible = make(map[uint64]bool)
	t.prices = make(map[uint64]*big.Int)
	t.stats = types.UserStats{}
	t.leaderboard = nil
	t.lastSyncAt = time.Time{}
	t.mu.Unlock()

	t.logger.Info("session initialized",
		"address", conn.Address.Hex(),
		"chain_id", conn.ChainID,
		"assets", len(assets),
		"time_windows", len(windows),
		"prediction_types", len(ptypes),
		"max_active", maxActive)
	t.emit(Event{Kind: "initialized"})
	return nil
}

// Invalidate drops all session state. Called when the wallet account or
// chain changes; any reconcile already in flight observes the epoch bump
// and discards its results instead of merging them.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	t.conn = nil
	t.epoch++
	t.catalog = nil
	t.predictions = make(map[uint64]*types.Prediction)
	t.eligible = make(map[uint64]bool)
	t.prices = make(map[uint64]*big.Int)
	t.stats = types.UserStats{}
	t.leaderboard = nil
	t.lastSyncAt = time.Time{}
	t.mu.Unlock()

	t.logger.Info("session invalidated")
	t.emit(Event{Kind: "invalidated"})
}

// Run reconciles once immediately, then on every poll tick until the
// context is cancelled. Ticks that land while a reconcile is still in
// flight are skipped, never queued.
func (t *Tracker) Run(ctx context.Context) {
	t.reconcileTick(ctx)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reconcileTick(ctx)
		}
	}
}

func (t *Tracker) reconcileTick(ctx context.Context) {
	if err := t.Reconcile(ctx); err != nil && !errors.Is(err, ErrNotConnected) && !errors.Is(err, ErrNotInitialized) {
		t.logger.Warn("reconcile failed", "error", err)
	}
}

// Reconcile pulls the authoritative prediction set for the bound wallet
// and merges it into local state. Resolved predictions are immutable and
// never refetched. If the identity changed while the fetch was running
// the results are discarded wholesale.
func (t *Tracker) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	if t.catalog == nil {
		t.mu.Unlock()
		return ErrNotInitialized
	}
	if t.syncing {
		t.mu.Unlock()
		return nil
	}
	t.syncing = true
	epoch := t.epoch
	owner := t.conn.Address
	resolved := make(map[uint64]bool, len(t.predictions))
	for id, p := range t.predictions {
		resolved[id] = p.Resolved
	}
	assets := t.catalog.Assets
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.syncing = false
		t.mu.Unlock()
	}()

	ids, err := t.ledger.UserPredictionIDs(ctx, owner)
	if err != nil {
		return fmt.Errorf("fetch prediction ids: %w", err)
	}

	updates := make(map[uint64]*types.Prediction)
	elig := make(map[uint64]bool)
	var firstErr error
	for _, id := range ids {
		if done, known := resolved[id]; known && done {
			continue
		}
		p, err := t.ledger.Prediction(ctx, id)
		if err != nil {
			t.logger.Warn("fetch prediction failed", "id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch prediction %d: %w", id, err)
			}
			continue
		}
		if !p.Resolved {
			ok, err := t.ledger.CanResolve(ctx, id)
			if err != nil {
				t.logger.Warn("fetch resolve eligibility failed", "id", id, "error", err)
			} else {
				elig[id] = ok
			}
		}
		updates[id] = &p
	}

	prices := make(map[uint64]*big.Int)
	for _, a := range assets {
		if !a.Active {
			continue
		}
		price, err := t.ledger.CurrentPrice(ctx, a.ID)
		if err != nil {
			t.logger.Warn("fetch price failed", "asset", a.Symbol, "error", err)
			continue
		}
		prices[a.ID] = price
	}

	stats, statsErr := t.ledger.UserStats(ctx, owner)
	board, boardErr := t.ledger.Leaderboard(ctx)

	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		t.logger.Debug("discarding stale reconcile", "epoch", epoch)
		return nil
	}
	for id, p := range updates {
		t.predictions[id] = p
		if p.Resolved {
			delete(t.eligible, id)
		} else {
			t.eligible[id] = elig[id]
		}
	}
	for id, price := range prices {
		t.prices[id] = price
	}
	if statsErr == nil {
		t.stats = stats
	} else {
		t.logger.Warn("fetch user stats failed", "error", statsErr)
	}
	if boardErr == nil {
		t.leaderboard = board
	} else {
		t.logger.Warn("fetch leaderboard failed", "error", boardErr)
	}
	t.lastSyncAt = time.Now().UTC()
	total := len(t.predictions)
	t.mu.Unlock()

	t.logger.Debug("reconciled", "predictions", total, "fetched", len(updates))
	t.emit(Event{Kind: "reconciled", Count: total})
	return firstErr
}

// ————————————————————————————————————————————————————————————————————————
// Write actions

// SubmitPrediction places a single prediction after local validation.
// A reconcile follows every accepted transaction so local state reflects
// the new entry without waiting for the next tick.
func (t *Tracker) SubmitPrediction(ctx context.Context, params types.PredictionParams) (common.Hash, error) {
	conn, catalog, active, err := t.writeState()
	if err != nil {
		return common.Hash{}, err
	}
	if err := validateParams(catalog, params); err != nil {
		return common.Hash{}, err
	}
	if active >= catalog.MaxActive {
		return common.Hash{}, &PreconditionError{Reason: ReasonTooManyActive, Limit: catalog.MaxActive}
	}

	hash, err := t.ledger.SubmitPrediction(ctx, conn, params)
	if err != nil {
		return common.Hash{}, err
	}
	t.logger.Info("prediction submitted",
		"asset", params.AssetID,
		"direction", params.Direction,
		"bet_eth", types.WeiToEther(params.BetAmount),
		"tx", hash.Hex())
	t.emit(Event{Kind: "submitted", TxHash: hash.Hex()})
	t.reconcileTick(ctx)
	return hash, nil
}

// SubmitBatch places up to MaxBatch predictions in one transaction.
// Every entry must individually pass the single-submit checks; one bad
// entry rejects the whole batch locally.
func (t *Tracker) SubmitBatch(ctx context.Context, list []types.PredictionParams) (common.Hash, error) {
	conn, catalog, active, err := t.writeState()
	if err != nil {
		return common.Hash{}, err
	}
	if len(list) == 0 || len(list) > t.cfg.MaxBatch {
		return common.Hash{}, &PreconditionError{
			Reason: ReasonBatchSizeInvalid,
			Detail: fmt.Sprintf("batch must have 1 to %d entries, got %d", t.cfg.MaxBatch, len(list)),
		}
	}
	for i, params := range list {
		if err := validateParams(catalog, params); err != nil {
			if pe, ok := AsPrecondition(err); ok && pe.Detail == "" {
				pe.Detail = fmt.Sprintf("batch entry %d", i)
			}
			return common.Hash{}, err
		}
	}
	if active+len(list) > catalog.MaxActive {
		return common.Hash{}, &PreconditionError{Reason: ReasonTooManyActive, Limit: catalog.MaxActive}
	}

	hash, err := t.ledger.SubmitBatch(ctx, conn, list)
	if err != nil {
		return common.Hash{}, err
	}
	t.logger.Info("batch submitted",
		"entries", len(list),
		"total_eth", types.WeiToEther(types.BatchTotal(list)),
		"tx", hash.Hex())
	t.emit(Event{Kind: "submitted", TxHash: hash.Hex(), Count: len(list)})
	t.reconcileTick(ctx)
	return hash, nil
}

// ResolvePrediction settles a prediction the tracker believes is
// eligible. Eligibility is the flag from the last reconciliation, or the
// resolve time having passed since; windows lapse between ticks.
func (t *Tracker) ResolvePrediction(ctx context.Context, id uint64) (common.Hash, error) {
	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return common.Hash{}, ErrNotConnected
	}
	if t.catalog == nil {
		t.mu.Unlock()
		return common.Hash{}, ErrNotInitialized
	}
	p, known := t.predictions[id]
	eligible := t.eligible[id]
	t.mu.Unlock()

	if !known {
		return common.Hash{}, &PreconditionError{
			Reason: ReasonUnknownPrediction,
			Detail: fmt.Sprintf("prediction %d not tracked for this wallet", id),
		}
	}
	if p.Resolved {
		return common.Hash{}, &PreconditionError{
			Reason: ReasonAlreadyResolved,
			Detail: fmt.Sprintf("prediction %d", id),
		}
	}
	if !eligible && time.Now().Before(p.ResolvesAt) {
		return common.Hash{}, &PreconditionError{
			Reason: ReasonNotYetResolvable,
			Detail: fmt.Sprintf("prediction %d resolves at %s", id, p.ResolvesAt.Format(time.RFC3339)),
		}
	}

	hash, err := t.ledger.Resolve(ctx, conn, id)
	if err != nil {
		return common.Hash{}, err
	}
	t.logger.Info("prediction resolved", "id", id, "tx", hash.Hex())
	t.emit(Event{Kind: "resolved", PredictionID: id, TxHash: hash.Hex()})
	t.reconcileTick(ctx)
	return hash, nil
}

// writeState snapshots the fields every write action needs and runs the
// shared connection checks.
func (t *Tracker) writeState() (*wallet.Connection, *types.Catalog, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, nil, 0, ErrNotConnected
	}
	if t.conn.ChainID == nil || t.conn.ChainID.Cmp(t.requiredChain) != 0 {
		return nil, nil, 0, fmt.Errorf("%w: have %v, want %v", ErrWrongChain, t.conn.ChainID, t.requiredChain)
	}
	if t.catalog == nil {
		return nil, nil, 0, ErrNotInitialized
	}
	active := 0
	for _, p := range t.predictions {
		if !p.Resolved {
			active++
		}
	}
	return t.conn, t.catalog, active, nil
}

func validateParams(catalog *types.Catalog, params types.PredictionParams) error {
	asset, ok := catalog.AssetByID(params.AssetID)
	if !ok {
		return &PreconditionError{Reason: ReasonUnknownEntity, Detail: fmt.Sprintf("asset %d", params.AssetID)}
	}
	if !asset.Active {
		return &PreconditionError{Reason: ReasonInactiveEntity, Detail: fmt.Sprintf("asset %s", asset.Symbol)}
	}
	window, ok := catalog.TimeWindowByID(params.TimeWindowID)
	if !ok {
		return &PreconditionError{Reason: ReasonUnknownEntity, Detail: fmt.Sprintf("time window %d", params.TimeWindowID)}
	}
	if !window.Active {
		return &PreconditionError{Reason: ReasonInactiveEntity, Detail: fmt.Sprintf("time window %s", window.Name)}
	}
	ptype, ok := catalog.PredictionTypeByID(params.PredictionTypeID)
	if !ok {
		return &PreconditionError{Reason: ReasonUnknownEntity, Detail: fmt.Sprintf("prediction type %d", params.PredictionTypeID)}
	}
	if !ptype.Active {
		return &PreconditionError{Reason: ReasonInactiveEntity, Detail: fmt.Sprintf("prediction type %s", ptype.Name)}
	}
	if params.Direction != types.DirectionUp && params.Direction != types.DirectionDown {
		return &PreconditionError{Reason: ReasonInvalidAmount, Detail: fmt.Sprintf("invalid direction %q", params.Direction)}
	}
	if params.BetAmount == nil || params.BetAmount.Sign() <= 0 {
		return &PreconditionError{Reason: ReasonInvalidAmount, Detail: "bet amount must be positive"}
	}
	if params.BetAmount.Cmp(ptype.MinBet) < 0 || params.BetAmount.Cmp(ptype.MaxBet) > 0 {
		return &PreconditionError{Reason: ReasonBetOutOfRange, Min: ptype.MinBet, Max: ptype.MaxBet}
	}
	if ptype.RequiresTarget() {
		if params.TargetPrice == nil || params.TargetPrice.Sign() == 0 {
			return &PreconditionError{Reason: ReasonTargetRequired, Detail: ptype.Name}
		}
	} else if params.TargetPrice != nil && params.TargetPrice.Sign() != 0 {
		return &PreconditionError{Reason: ReasonUnexpectedTarget, Detail: ptype.Name}
	}
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Read accessors

// Connection reports the bound wallet address, or false when none.
func (t *Tracker) Connection() (common.Address, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return common.Address{}, false
	}
	return t.conn.Address, true
}

// Catalog returns the loaded catalog, or nil before initialization.
func (t *Tracker) Catalog() *types.Catalog {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catalog
}

// Active returns unresolved predictions, newest first. Buckets are
// recomputed from the prediction set on every call.
func (t *Tracker) Active() []types.Prediction {
	return t.filter(func(p *types.Prediction) bool { return !p.Resolved })
}

// History returns resolved predictions, newest first.
func (t *Tracker) History() []types.Prediction {
	return t.filter(func(p *types.Prediction) bool { return p.Resolved })
}

func (t *Tracker) filter(keep func(*types.Prediction) bool) []types.Prediction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Prediction, 0, len(t.predictions))
	for _, p := range t.predictions {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Eligible reports whether a prediction can be resolved right now.
func (t *Tracker) Eligible(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.eligible[id] {
		return true
	}
	p, ok := t.predictions[id]
	return ok && !p.Resolved && !time.Now().Before(p.ResolvesAt)
}

// Prices returns the latest per-asset feed prices.
func (t *Tracker) Prices() map[uint64]*big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint64]*big.Int, len(t.prices))
	for id, p := range t.prices {
		out[id] = p
	}
	return out
}

// Stats returns the wallet's aggregate record.
func (t *Tracker) Stats() types.UserStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Leaderboard returns the last fetched top-winners board.
func (t *Tracker) Leaderboard() []types.LeaderboardEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.LeaderboardEntry, len(t.leaderboard))
	copy(out, t.leaderboard)
	return out
}

// LastSyncAt returns the completion time of the last merged reconcile.
func (t *Tracker) LastSyncAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSyncAt
}
