package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI is the external call surface of the prediction contract.
// Only the members the client uses are declared; the contract itself is
// deployed from a compiled artifact and is not part of this repository.
const contractABI = `[
	{"name":"assetCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"timeWindowCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"predictionTypeCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"predictionCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"maxActivePredictions","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"name":"assets","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[
		{"name":"symbol","type":"string"},
		{"name":"priceFeed","type":"address"},
		{"name":"decimals","type":"uint8"},
		{"name":"isActive","type":"bool"},
		{"name":"totalPredictions","type":"uint256"},
		{"name":"totalVolume","type":"uint256"}
	]},
	{"name":"timeWindows","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[
		{"name":"name","type":"string"},
		{"name":"duration","type":"uint256"},
		{"name":"isActive","type":"bool"},
		{"name":"multiplier","type":"uint256"}
	]},
	{"name":"predictionTypes","type":"function","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[
		{"name":"name","type":"string"},
		{"name":"isActive","type":"bool"},
		{"name":"minBet","type":"uint256"},
		{"name":"maxBet","type":"uint256"},
		{"name":"rewardMultiplier","type":"uint256"}
	]},
	{"name":"getCurrentPrice","type":"function","stateMutability":"view","inputs":[{"name":"assetId","type":"uint256"}],"outputs":[{"type":"int256"}]},
	{"name":"getUserPredictions","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"type":"uint256[]"}]},
	{"name":"getActivePredictions","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"type":"uint256[]"}]},
	{"name":"getPrediction","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[
		{"name":"user","type":"address"},
		{"name":"assetId","type":"uint256"},
		{"name":"timeWindowId","type":"uint256"},
		{"name":"predictionTypeId","type":"uint256"},
		{"name":"amount","type":"uint256"},
		{"name":"startPrice","type":"int256"},
		{"name":"targetPrice","type":"int256"},
		{"name":"isUp","type":"bool"},
		{"name":"createdAt","type":"uint256"},
		{"name":"endTime","type":"uint256"},
		{"name":"resolved","type":"bool"},
		{"name":"won","type":"bool"},
		{"name":"reward","type":"uint256"}
	]},
	{"name":"canResolve","type":"function","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"type":"bool"}]},
	{"name":"userStats","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[
		{"name":"totalPredictions","type":"uint256"},
		{"name":"winCount","type":"uint256"},
		{"name":"totalBet","type":"uint256"},
		{"name":"totalWon","type":"uint256"},
		{"name":"winStreak","type":"uint256"},
		{"name":"maxWinStreak","type":"uint256"}
	]},
	{"name":"getLeaderboard","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"address[]"}]},
	{"name":"makePrediction","type":"function","stateMutability":"payable","inputs":[
		{"name":"assetId","type":"uint256"},
		{"name":"timeWindowId","type":"uint256"},
		{"name":"predictionTypeId","type":"uint256"},
		{"name":"isUp","type":"bool"},
		{"name":"targetPrice","type":"int256"}
	],"outputs":[]},
	{"name":"makeBatchPredictions","type":"function","stateMutability":"payable","inputs":[
		{"name":"assetIds","type":"uint256[]"},
		{"name":"timeWindowIds","type":"uint256[]"},
		{"name":"predictionTypeIds","type":"uint256[]"},
		{"name":"directions","type":"bool[]"},
		{"name":"amounts","type":"uint256[]"}
	],"outputs":[]},
	{"name":"resolvePrediction","type":"function","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
	{"name":"addAsset","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"symbol","type":"string"},
		{"name":"priceFeed","type":"address"},
		{"name":"decimals","type":"uint8"}
	],"outputs":[]},
	{"name":"addTimeWindow","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"name","type":"string"},
		{"name":"duration","type":"uint256"},
		{"name":"multiplier","type":"uint256"}
	],"outputs":[]},
	{"name":"addPredictionType","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"name","type":"string"},
		{"name":"minBet","type":"uint256"},
		{"name":"maxBet","type":"uint256"},
		{"name":"rewardMultiplier","type":"uint256"}
	],"outputs":[]}
]`

// parsedABI panics on a malformed constant, which can only happen from a
// bad edit to contractABI itself.
var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		panic("ledger: parse contract ABI: " + err.Error())
	}
	return parsed
}()
