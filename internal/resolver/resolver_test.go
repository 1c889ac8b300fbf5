package resolver

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pricepredict/internal/config"
	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
)

type sweepLedger struct {
	mu          sync.Mutex
	predictions map[uint64]types.Prediction
	eligible    map[uint64]bool
	fetches     map[uint64]int
	resolveErr  error
	resolved    []uint64
}

func newSweepLedger() *sweepLedger {
	return &sweepLedger{
		predictions: make(map[uint64]types.Prediction),
		eligible:    make(map[uint64]bool),
		fetches:     make(map[uint64]int),
	}
}

func (l *sweepLedger) PredictionCount(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.predictions)), nil
}

func (l *sweepLedger) Prediction(ctx context.Context, id uint64) (types.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches[id]++
	return l.predictions[id], nil
}

func (l *sweepLedger) CanResolve(ctx context.Context, id uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eligible[id], nil
}

func (l *sweepLedger) Resolve(ctx context.Context, conn *wallet.Connection, id uint64) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolveErr != nil {
		return common.Hash{}, l.resolveErr
	}
	p := l.predictions[id]
	p.Resolved = true
	l.predictions[id] = p
	delete(l.eligible, id)
	l.resolved = append(l.resolved, id)
	return common.HexToHash("0xbeef"), nil
}

func newTestResolver(l Ledger) *Resolver {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(config.ResolverConfig{Schedule: "@every 30s"}, l, nil, logger)
}

func seed(l *sweepLedger, id uint64, resolved, eligible bool) {
	l.predictions[id] = types.Prediction{
		ID:         id,
		BetAmount:  big.NewInt(1e16),
		Resolved:   resolved,
		ResolvesAt: time.Now().Add(-time.Minute),
	}
	if eligible {
		l.eligible[id] = true
	}
}

func TestSweepSettlesEligibleOnly(t *testing.T) {
	t.Parallel()
	l := newSweepLedger()
	seed(l, 0, false, true)  // eligible, should settle
	seed(l, 1, false, false) // window still open
	seed(l, 2, true, false)  // already resolved

	r := newTestResolver(l)
	settled, checked, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
	if checked != 3 {
		t.Errorf("checked = %d, want 3", checked)
	}
	if len(l.resolved) != 1 || l.resolved[0] != 0 {
		t.Errorf("resolved ids = %v, want [0]", l.resolved)
	}
}

func TestSweepSkipsSettledOnLaterRuns(t *testing.T) {
	t.Parallel()
	l := newSweepLedger()
	seed(l, 0, false, true)
	seed(l, 1, true, false)

	r := newTestResolver(l)
	if _, _, err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if _, _, err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, n := range l.fetches {
		if n != 1 {
			t.Errorf("prediction %d fetched %d times, want 1", id, n)
		}
	}
}

func TestSweepContinuesPastResolveFailure(t *testing.T) {
	t.Parallel()
	l := newSweepLedger()
	seed(l, 0, false, true)
	seed(l, 1, false, true)
	l.resolveErr = errors.New("nonce too low")

	r := newTestResolver(l)
	settled, checked, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if settled != 0 {
		t.Errorf("settled = %d, want 0", settled)
	}
	if checked != 2 {
		t.Errorf("checked = %d, want 2: a failed resolve must not stop the sweep", checked)
	}

	// Failed ids are retried next sweep.
	l.resolveErr = nil
	settled, _, err = r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("retry sweep: %v", err)
	}
	if settled != 2 {
		t.Errorf("settled on retry = %d, want 2", settled)
	}
}
