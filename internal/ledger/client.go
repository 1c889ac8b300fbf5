// Package ledger implements the client for the on-chain prediction contract.
//
// The contract is the system of record: it owns prediction state, payout
// accounting, user statistics, and the leaderboard. This package only moves
// data across the wire. Reads are plain eth_call round trips decoded into
// pkg/types values; writes pack calldata, sign with the caller's Connection,
// and wait for the receipt before the effect is treated as durable. A
// reverted receipt is replayed as a call to recover the revert reason, and
// every write failure is classified into the WriteError taxonomy.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"pricepredict/internal/wallet"
	"pricepredict/pkg/types"
)

// Client talks to one deployment of the prediction contract.
type Client struct {
	eth      *ethclient.Client
	contract common.Address
	logger   *slog.Logger
}

// Dial connects to the RPC endpoint and binds the contract address.
func Dial(ctx context.Context, rpcURL string, contract common.Address, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return New(eth, contract, logger), nil
}

// New wraps an existing RPC client. The caller keeps ownership of eth.
func New(eth *ethclient.Client, contract common.Address, logger *slog.Logger) *Client {
	return &Client{
		eth:      eth,
		contract: contract,
		logger:   logger.With("component", "ledger"),
	}
}

// Close releases the underlying RPC client.
func (c *Client) Close() {
	c.eth.Close()
}

// Verify confirms the bound address actually holds contract code. A
// wrong address or wrong network otherwise fails much later, as a
// confusing decode error on the first read.
func (c *Client) Verify(ctx context.Context) error {
	code, err := c.eth.CodeAt(ctx, c.contract, nil)
	if err != nil {
		return fmt.Errorf("fetch contract code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract code at %s", c.contract.Hex())
	}
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Reads
// ————————————————————————————————————————————————————————————————————————

// call packs, executes, and unpacks one view method.
func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := parsedABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

func (c *Client) count(ctx context.Context, method string) (uint64, error) {
	vals, err := c.call(ctx, method)
	if err != nil {
		return 0, err
	}
	return vals[0].(*big.Int).Uint64(), nil
}

// Assets enumerates every registered asset in id order.
func (c *Client) Assets(ctx context.Context) ([]types.Asset, error) {
	n, err := c.count(ctx, "assetCount")
	if err != nil {
		return nil, err
	}

	assets := make([]types.Asset, 0, n)
	for i := uint64(0); i < n; i++ {
		vals, err := c.call(ctx, "assets", new(big.Int).SetUint64(i))
		if err != nil {
			return nil, err
		}
		assets = append(assets, types.Asset{
			ID:               i,
			Symbol:           vals[0].(string),
			PriceFeed:        vals[1].(common.Address),
			Decimals:         vals[2].(uint8),
			Active:           vals[3].(bool),
			TotalPredictions: vals[4].(*big.Int).Uint64(),
			TotalVolume:      vals[5].(*big.Int),
		})
	}
	return assets, nil
}

// TimeWindows enumerates every registered time window in id order.
func (c *Client) TimeWindows(ctx context.Context) ([]types.TimeWindow, error) {
	n, err := c.count(ctx, "timeWindowCount")
	if err != nil {
		return nil, err
	}

	windows := make([]types.TimeWindow, 0, n)
	for i := uint64(0); i < n; i++ {
		vals, err := c.call(ctx, "timeWindows", new(big.Int).SetUint64(i))
		if err != nil {
			return nil, err
		}
		windows = append(windows, types.TimeWindow{
			ID:         i,
			Name:       vals[0].(string),
			Duration:   time.Duration(vals[1].(*big.Int).Int64()) * time.Second,
			Active:     vals[2].(bool),
			Multiplier: vals[3].(*big.Int).Uint64(),
		})
	}
	return windows, nil
}

// PredictionTypes enumerates every registered prediction type in id order.
func (c *Client) PredictionTypes(ctx context.Context) ([]types.PredictionType, error) {
	n, err := c.count(ctx, "predictionTypeCount")
	if err != nil {
		return nil, err
	}

	pts := make([]types.PredictionType, 0, n)
	for i := uint64(0); i < n; i++ {
		vals, err := c.call(ctx, "predictionTypes", new(big.Int).SetUint64(i))
		if err != nil {
			return nil, err
		}
		pts = append(pts, types.PredictionType{
			ID:         i,
			Name:       vals[0].(string),
			Active:     vals[1].(bool),
			MinBet:     vals[2].(*big.Int),
			MaxBet:     vals[3].(*big.Int),
			Multiplier: vals[4].(*big.Int).Uint64(),
		})
	}
	return pts, nil
}

// MaxActivePredictions reads the contract's per-user unresolved limit.
func (c *Client) MaxActivePredictions(ctx context.Context) (int, error) {
	n, err := c.count(ctx, "maxActivePredictions")
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PredictionCount reads the total number of predictions ever made.
func (c *Client) PredictionCount(ctx context.Context) (uint64, error) {
	return c.count(ctx, "predictionCount")
}

// CurrentPrice reads the feed price for an asset (fixed-point, scale =
// asset decimals).
func (c *Client) CurrentPrice(ctx context.Context, assetID uint64) (*big.Int, error) {
	vals, err := c.call(ctx, "getCurrentPrice", new(big.Int).SetUint64(assetID))
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// UserPredictionIDs lists every prediction id owned by the identity,
// oldest first (ids are monotonic by creation order).
func (c *Client) UserPredictionIDs(ctx context.Context, owner common.Address) ([]uint64, error) {
	vals, err := c.call(ctx, "getUserPredictions", owner)
	if err != nil {
		return nil, err
	}

	raw := vals[0].([]*big.Int)
	ids := make([]uint64, len(raw))
	for i, id := range raw {
		ids[i] = id.Uint64()
	}
	return ids, nil
}

// Prediction fetches one prediction's full detail.
//
// The contract encodes "no target price" as zero, which is ambiguous with a
// legitimate zero target; this boundary maps zero to nil so the rest of the
// client works with an explicit absent value.
func (c *Client) Prediction(ctx context.Context, id uint64) (types.Prediction, error) {
	vals, err := c.call(ctx, "getPrediction", new(big.Int).SetUint64(id))
	if err != nil {
		return types.Prediction{}, err
	}

	var target *big.Int
	if raw := vals[6].(*big.Int); raw.Sign() != 0 {
		target = raw
	}

	return types.Prediction{
		ID:               id,
		Owner:            vals[0].(common.Address),
		AssetID:          vals[1].(*big.Int).Uint64(),
		TimeWindowID:     vals[2].(*big.Int).Uint64(),
		PredictionTypeID: vals[3].(*big.Int).Uint64(),
		BetAmount:        vals[4].(*big.Int),
		StartPrice:       vals[5].(*big.Int),
		TargetPrice:      target,
		Direction:        types.DirectionFromBool(vals[7].(bool)),
		CreatedAt:        time.Unix(vals[8].(*big.Int).Int64(), 0).UTC(),
		ResolvesAt:       time.Unix(vals[9].(*big.Int).Int64(), 0).UTC(),
		Resolved:         vals[10].(bool),
		Won:              vals[11].(bool),
		Reward:           vals[12].(*big.Int),
	}, nil
}

// CanResolve reports whether a resolve call for the id would currently be
// accepted by the contract.
func (c *Client) CanResolve(ctx context.Context, id uint64) (bool, error) {
	vals, err := c.call(ctx, "canResolve", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}
	return vals[0].(bool), nil
}

// UserStats fetches the ledger-maintained aggregate for one identity.
func (c *Client) UserStats(ctx context.Context, owner common.Address) (types.UserStats, error) {
	vals, err := c.call(ctx, "userStats", owner)
	if err != nil {
		return types.UserStats{}, err
	}
	return types.UserStats{
		TotalPredictions: vals[0].(*big.Int).Uint64(),
		Wins:             vals[1].(*big.Int).Uint64(),
		TotalBet:         vals[2].(*big.Int),
		TotalWon:         vals[3].(*big.Int),
		WinStreak:        vals[4].(*big.Int).Uint64(),
		BestWinStreak:    vals[5].(*big.Int).Uint64(),
	}, nil
}

// Leaderboard fetches the top-winners board. Empty slots (zero addresses)
// are skipped; each remaining row carries that identity's stats.
func (c *Client) Leaderboard(ctx context.Context) ([]types.LeaderboardEntry, error) {
	vals, err := c.call(ctx, "getLeaderboard")
	if err != nil {
		return nil, err
	}

	addrs := vals[0].([]common.Address)
	board := make([]types.LeaderboardEntry, 0, len(addrs))
	for i, addr := range addrs {
		if addr == (common.Address{}) {
			continue
		}
		stats, err := c.UserStats(ctx, addr)
		if err != nil {
			return nil, err
		}
		board = append(board, types.LeaderboardEntry{
			Rank:    i + 1,
			Address: addr,
			Stats:   stats,
		})
	}
	return board, nil
}

// ————————————————————————————————————————————————————————————————————————
// Writes
// ————————————————————————————————————————————————————————————————————————

// SubmitPrediction issues one payable makePrediction with the bet attached
// as the transaction value and waits for it to be mined.
func (c *Client) SubmitPrediction(ctx context.Context, conn *wallet.Connection, p types.PredictionParams) (common.Hash, error) {
	target := big.NewInt(0)
	if p.TargetPrice != nil {
		target = p.TargetPrice
	}

	return c.transact(ctx, conn, p.BetAmount, "makePrediction",
		new(big.Int).SetUint64(p.AssetID),
		new(big.Int).SetUint64(p.TimeWindowID),
		new(big.Int).SetUint64(p.PredictionTypeID),
		p.Direction.Bool(),
		target,
	)
}

// SubmitBatch issues one payable makeBatchPredictions covering every entry.
// The attached value is the exact sum of the entries' bet amounts.
func (c *Client) SubmitBatch(ctx context.Context, conn *wallet.Connection, list []types.PredictionParams) (common.Hash, error) {
	assetIDs := make([]*big.Int, len(list))
	windowIDs := make([]*big.Int, len(list))
	typeIDs := make([]*big.Int, len(list))
	directions := make([]bool, len(list))
	amounts := make([]*big.Int, len(list))
	for i, p := range list {
		assetIDs[i] = new(big.Int).SetUint64(p.AssetID)
		windowIDs[i] = new(big.Int).SetUint64(p.TimeWindowID)
		typeIDs[i] = new(big.Int).SetUint64(p.PredictionTypeID)
		directions[i] = p.Direction.Bool()
		amounts[i] = p.BetAmount
	}

	return c.transact(ctx, conn, types.BatchTotal(list), "makeBatchPredictions",
		assetIDs, windowIDs, typeIDs, directions, amounts)
}

// Resolve issues a resolvePrediction write and waits for it to be mined.
func (c *Client) Resolve(ctx context.Context, conn *wallet.Connection, id uint64) (common.Hash, error) {
	return c.transact(ctx, conn, nil, "resolvePrediction", new(big.Int).SetUint64(id))
}

// AddAsset registers an asset (deployment/admin only).
func (c *Client) AddAsset(ctx context.Context, conn *wallet.Connection, symbol string, feed common.Address, decimals uint8) (common.Hash, error) {
	return c.transact(ctx, conn, nil, "addAsset", symbol, feed, decimals)
}

// AddTimeWindow registers a time window (deployment/admin only).
func (c *Client) AddTimeWindow(ctx context.Context, conn *wallet.Connection, name string, duration time.Duration, multiplier uint64) (common.Hash, error) {
	return c.transact(ctx, conn, nil, "addTimeWindow", name,
		big.NewInt(int64(duration/time.Second)), new(big.Int).SetUint64(multiplier))
}

// AddPredictionType registers a prediction type (deployment/admin only).
func (c *Client) AddPredictionType(ctx context.Context, conn *wallet.Connection, name string, minBet, maxBet *big.Int, multiplier uint64) (common.Hash, error) {
	return c.transact(ctx, conn, nil, "addPredictionType", name,
		minBet, maxBet, new(big.Int).SetUint64(multiplier))
}

// transact packs, signs, sends, and awaits one state-changing call.
// The effect is durable only once the receipt confirms success; a status-0
// receipt is replayed as a call at the same block to recover the reason.
func (c *Client) transact(ctx context.Context, conn *wallet.Connection, value *big.Int, method string, args ...any) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{From: conn.Address, To: &c.contract, Value: value, Data: data}
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation executes the call, so contract preconditions revert here.
		return common.Hash{}, classifyWriteError(err)
	}
	gas += gas / 5 // headroom over the estimate

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, conn.Address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.contract,
		Value:    value,
		Data:     data,
	})
	signed, err := conn.SignTx(tx)
	if err != nil {
		return common.Hash{}, classifyWriteError(err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, classifyWriteError(err)
	}

	c.logger.Info("transaction sent",
		"method", method,
		"tx", signed.Hash().Hex(),
		"value", value,
	)

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wait mined %s: %w", method, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		reason := c.replayForReason(ctx, msg, receipt.BlockNumber)
		return common.Hash{}, classifyWriteError(fmt.Errorf("execution reverted: %s", reason))
	}

	return signed.Hash(), nil
}

// replayForReason re-executes a reverted transaction as a call at its
// block to extract the revert reason. Best effort: an empty reason means
// the node would not reproduce the revert.
func (c *Client) replayForReason(ctx context.Context, msg ethereum.CallMsg, block *big.Int) string {
	_, err := c.eth.CallContract(ctx, msg, block)
	if err == nil {
		return "transaction reverted"
	}
	return revertReason(err.Error())
}
