package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// WriteKind classifies why a payable write was refused or reverted.
type WriteKind string

const (
	WriteInsufficientFunds WriteKind = "insufficient_funds"
	WriteUserRejected      WriteKind = "user_rejected"
	WriteBetOutOfRange     WriteKind = "bet_out_of_range"
	WriteTooManyActive     WriteKind = "too_many_active"
	WriteReverted          WriteKind = "reverted"
)

// WriteError is a classified ledger write failure. The underlying message
// is passed through unmodified; no silent recovery or retry happens at this
// layer (re-sending a payable transaction risks double-spending the bet).
type WriteError struct {
	Kind   WriteKind
	Reason string // revert reason or transport message
	Err    error
}

func (e *WriteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ledger write failed (%s): %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("ledger write failed (%s)", e.Kind)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// AsWriteError unwraps a WriteError from an error chain.
func AsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	ok := errors.As(err, &we)
	return we, ok
}

// classifyWriteError maps a node or signing error onto the write taxonomy.
// Revert reasons are matched on the contract's known require messages; an
// unrecognized reason stays a generic revert with the text passed through.
func classifyWriteError(err error) *WriteError {
	msg := err.Error()
	reason := revertReason(msg)

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return &WriteError{Kind: WriteInsufficientFunds, Reason: reason, Err: err}
	case strings.Contains(lower, "user denied"), strings.Contains(lower, "user rejected"),
		strings.Contains(lower, "signing refused"):
		return &WriteError{Kind: WriteUserRejected, Reason: reason, Err: err}
	}

	lowerReason := strings.ToLower(reason)
	switch {
	case strings.Contains(lowerReason, "bet amount"),
		strings.Contains(lowerReason, "bet too"),
		strings.Contains(lowerReason, "below minimum"),
		strings.Contains(lowerReason, "above maximum"):
		return &WriteError{Kind: WriteBetOutOfRange, Reason: reason, Err: err}
	case strings.Contains(lowerReason, "too many active"):
		return &WriteError{Kind: WriteTooManyActive, Reason: reason, Err: err}
	}

	return &WriteError{Kind: WriteReverted, Reason: reason, Err: err}
}

// revertReason extracts the human-readable reason from an
// "execution reverted: …" node error, or returns the raw message when the
// node did not surface one.
func revertReason(msg string) string {
	const marker = "execution reverted"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return msg
	}
	rest := strings.TrimPrefix(msg[idx+len(marker):], ":")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return marker
	}
	return rest
}
