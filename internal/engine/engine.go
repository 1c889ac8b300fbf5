// Package engine is the central orchestrator of the prediction daemon.
//
// It wires together all subsystems:
//
//  1. Wallet provider supplies the signing identity and watches for
//     account and chain changes.
//  2. Ledger client talks to the prediction contract over JSON-RPC.
//  3. Tracker reconciles the wallet's prediction session on a cadence.
//  4. Tracker events are bridged to the dashboard stream.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pricepredict/internal/api"
	"pricepredict/internal/config"
	"pricepredict/internal/ledger"
	"pricepredict/internal/tracker"
	"pricepredict/internal/wallet"
)

// Engine owns the lifecycle of all goroutines and reacts to wallet
// identity changes by tearing down and rebuilding the session.
type Engine struct {
	cfg     config.Config
	wallet  *wallet.KeyWallet
	ledger  *ledger.Client
	tracker *tracker.Tracker
	logger  *slog.Logger

	// dashboardEvents is nil when the dashboard is disabled.
	dashboardEvents chan api.DashboardEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components. The RPC endpoint is not
// contacted until Start.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	w, err := wallet.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var dashEvents chan api.DashboardEvent
	if cfg.Dashboard.Enabled {
		dashEvents = make(chan api.DashboardEvent, 100)
	}

	return &Engine{
		cfg:             cfg,
		wallet:          w,
		logger:          logger.With("component", "engine"),
		dashboardEvents: dashEvents,
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// Start connects the wallet, dials the ledger, initializes the session
// and launches the reconcile loop plus the event bridges.
func (e *Engine) Start() error {
	conn, err := e.wallet.Connect(e.ctx)
	if err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}

	contract := common.HexToAddress(e.cfg.Network.ContractAddress)
	lc, err := ledger.Dial(e.ctx, e.cfg.Network.RPCURL, contract, e.logger)
	if err != nil {
		return fmt.Errorf("dial ledger: %w", err)
	}
	if err := lc.Verify(e.ctx); err != nil {
		lc.Close()
		return fmt.Errorf("verify contract: %w", err)
	}
	e.ledger = lc
	e.tracker = tracker.New(e.cfg, lc, e.logger)

	if err := e.tracker.Initialize(e.ctx, conn); err != nil {
		lc.Close()
		return fmt.Errorf("initialize session: %w", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.tracker.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.watchWallet()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.forwardEvents()
	}()

	return nil
}

// Stop cancels all goroutines, waits for them and closes resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()
	e.wg.Wait()

	if e.ledger != nil {
		e.ledger.Close()
	}
	e.wallet.Close()

	e.logger.Info("shutdown complete")
}

// ReloadWallet re-reads the key source; an address change surfaces as an
// AccountChanged event handled by watchWallet. Wired to SIGHUP.
func (e *Engine) ReloadWallet() error {
	return e.wallet.Reload()
}

// Tracker exposes the session tracker for the dashboard.
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// DashboardEvents returns the dashboard event channel (may be nil).
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent {
	return e.dashboardEvents
}

// watchWallet reacts to identity changes. Both event kinds invalidate
// the session; the tracker discards any reconcile that was in flight for
// the old identity. A re-initialize follows for accepted identities; a
// wrong chain leaves the session down until the chain changes back.
func (e *Engine) watchWallet() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt := <-e.wallet.Events():
			switch evt.Kind {
			case wallet.EventAccountChanged:
				e.logger.Info("account changed", "address", evt.Address.Hex())
			case wallet.EventChainChanged:
				e.logger.Warn("chain changed", "chain_id", evt.ChainID)
			}
			e.tracker.Invalidate()
			e.rebuildSession()
		}
	}
}

// rebuildSession reconnects and reinitializes after an identity change.
// Initialization failures are logged, not fatal: the next wallet event
// or operator restart gets another attempt.
func (e *Engine) rebuildSession() {
	ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
	defer cancel()

	conn, err := e.wallet.Connect(ctx)
	if err != nil {
		e.logger.Error("reconnect failed", "error", err)
		return
	}
	if err := e.tracker.Initialize(ctx, conn); err != nil {
		e.logger.Error("session rebuild failed", "error", err)
		return
	}
	if err := e.tracker.Reconcile(ctx); err != nil {
		e.logger.Warn("initial reconcile after rebuild failed", "error", err)
	}
}

// forwardEvents bridges tracker notifications onto the dashboard stream.
func (e *Engine) forwardEvents() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt := <-e.tracker.Events():
			e.emitDashboardEvent(api.DashboardEvent{
				Type:      evt.Kind,
				Timestamp: evt.Timestamp,
				Data:      evt,
			})
		}
	}
}

// emitDashboardEvent sends an event to the dashboard (non-blocking).
func (e *Engine) emitDashboardEvent(evt api.DashboardEvent) {
	if e.dashboardEvents == nil {
		return
	}
	select {
	case e.dashboardEvents <- evt:
	default:
		// Dashboard can't keep up, drop event
	}
}
