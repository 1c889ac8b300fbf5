package tracker

import (
	"errors"
	"fmt"
	"math/big"

	"pricepredict/pkg/types"
)

// Connection and initialization failures. Write actions are refused with
// these before any network call is made.
var (
	ErrNotConnected   = errors.New("no wallet connection")
	ErrWrongChain     = errors.New("connected to the wrong chain")
	ErrNotInitialized = errors.New("tracker not initialized")

	// ErrCatalogUnavailable wraps any failure during the all-or-nothing
	// catalog fetch; no partial catalog is ever retained.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// PreconditionReason identifies which client-side check refused an action.
type PreconditionReason string

const (
	ReasonBetOutOfRange     PreconditionReason = "bet_out_of_range"
	ReasonTooManyActive     PreconditionReason = "too_many_active_predictions"
	ReasonAlreadyResolved   PreconditionReason = "already_resolved"
	ReasonNotYetResolvable  PreconditionReason = "not_yet_resolvable"
	ReasonBatchSizeInvalid  PreconditionReason = "batch_size_invalid"
	ReasonUnknownPrediction PreconditionReason = "unknown_prediction"
	ReasonUnknownEntity     PreconditionReason = "unknown_catalog_entity"
	ReasonInactiveEntity    PreconditionReason = "inactive_catalog_entity"
	ReasonTargetRequired    PreconditionReason = "target_price_required"
	ReasonUnexpectedTarget  PreconditionReason = "unexpected_target_price"
	ReasonInvalidAmount     PreconditionReason = "invalid_bet_amount"
)

// PreconditionError is a locally-detected refusal. The action was never
// sent to the ledger: failing fast here costs no gas and avoids a
// guaranteed on-chain revert.
type PreconditionError struct {
	Reason PreconditionReason
	Detail string

	// Bet bounds, set for ReasonBetOutOfRange.
	Min, Max *big.Int
	// Active-prediction cap, set for ReasonTooManyActive.
	Limit int
}

func (e *PreconditionError) Error() string {
	switch e.Reason {
	case ReasonBetOutOfRange:
		return fmt.Sprintf("precondition failed (%s): bet must be in [%s, %s] ETH",
			e.Reason, types.WeiToEther(e.Min), types.WeiToEther(e.Max))
	case ReasonTooManyActive:
		return fmt.Sprintf("precondition failed (%s): at most %d active predictions", e.Reason, e.Limit)
	}
	if e.Detail != "" {
		return fmt.Sprintf("precondition failed (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("precondition failed (%s)", e.Reason)
}

// AsPrecondition unwraps a PreconditionError from an error chain.
func AsPrecondition(err error) (*PreconditionError, bool) {
	var pe *PreconditionError
	ok := errors.As(err, &pe)
	return pe, ok
}
