// Package resolver implements the auto-resolver service. It sweeps the
// full prediction set on a cron schedule and settles every prediction
// whose window has lapsed, so winners get paid without opening the
// dashboard.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"

	"pricepredict/internal/config"
	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
)

// Ledger is the contract surface the resolver needs. *ledger.Client
// satisfies it.
type Ledger interface {
	PredictionCount(ctx context.Context) (uint64, error)
	Prediction(ctx context.Context, id uint64) (types.Prediction, error)
	CanResolve(ctx context.Context, id uint64) (bool, error)
	Resolve(ctx context.Context, conn *wallet.Connection, id uint64) (common.Hash, error)
}

// Resolver sweeps and settles eligible predictions on a schedule.
type Resolver struct {
	cfg    config.ResolverConfig
	ledger Ledger
	conn   *wallet.Connection
	cron   *cron.Cron
	logger *slog.Logger

	// settled remembers ids already resolved so later sweeps skip the
	// per-id reads for them.
	mu      sync.Mutex
	settled map[uint64]bool

	ctx context.Context
}

func New(cfg config.ResolverConfig, lg Ledger, conn *wallet.Connection, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:     cfg,
		ledger:  lg,
		conn:    conn,
		cron:    cron.New(),
		logger:  logger.With("component", "resolver"),
		settled: make(map[uint64]bool),
	}
}

// Start registers the sweep on the configured schedule and runs one
// immediately. Blocks only on schedule registration errors.
func (r *Resolver) Start(ctx context.Context) error {
	r.ctx = ctx
	if _, err := r.cron.AddFunc(r.cfg.Schedule, r.sweepJob); err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", r.cfg.Schedule, err)
	}
	r.cron.Start()
	r.logger.Info("resolver started", "schedule", r.cfg.Schedule)

	r.sweepJob()
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (r *Resolver) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("resolver stopped")
}

func (r *Resolver) sweepJob() {
	settled, checked, err := r.Sweep(r.ctx)
	if err != nil {
		r.logger.Error("sweep failed", "error", err)
		return
	}
	r.logger.Info("sweep complete", "checked", checked, "settled", settled)
}

// Sweep walks every prediction id once and resolves the eligible ones.
// Per-id failures are logged and skipped; the sweep keeps going.
func (r *Resolver) Sweep(ctx context.Context) (settled, checked int, err error) {
	count, err := r.ledger.PredictionCount(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("prediction count: %w", err)
	}

	for id := uint64(0); id < count; id++ {
		if ctx != nil && ctx.Err() != nil {
			return settled, checked, ctx.Err()
		}
		r.mu.Lock()
		done := r.settled[id]
		r.mu.Unlock()
		if done {
			continue
		}
		checked++

		p, err := r.ledger.Prediction(ctx, id)
		if err != nil {
			r.logger.Warn("fetch prediction failed", "id", id, "error", err)
			continue
		}
		if p.Resolved {
			r.markSettled(id)
			continue
		}

		eligible, err := r.ledger.CanResolve(ctx, id)
		if err != nil {
			r.logger.Warn("eligibility check failed", "id", id, "error", err)
			continue
		}
		if !eligible {
			continue
		}

		hash, err := r.ledger.Resolve(ctx, r.conn, id)
		if err != nil {
			r.logger.Error("resolve failed", "id", id, "error", err)
			continue
		}
		r.markSettled(id)
		settled++
		r.logger.Info("prediction settled",
			"id", id,
			"owner", p.Owner.Hex(),
			"bet_eth", types.WeiToEther(p.BetAmount),
			"tx", hash.Hex())
	}
	return settled, checked, nil
}

func (r *Resolver) markSettled(id uint64) {
	r.mu.Lock()
	r.settled[id] = true
	r.mu.Unlock()
}
