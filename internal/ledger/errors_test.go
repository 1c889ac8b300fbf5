package ledger

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want WriteKind
	}{
		{
			name: "insufficient balance",
			msg:  "insufficient funds for gas * price + value: have 100 want 10000000",
			want: WriteInsufficientFunds,
		},
		{
			name: "signer refused",
			msg:  "user denied transaction signature",
			want: WriteUserRejected,
		},
		{
			name: "bet below minimum revert",
			msg:  "execution reverted: Bet amount below minimum",
			want: WriteBetOutOfRange,
		},
		{
			name: "bet above maximum revert",
			msg:  "execution reverted: Bet amount above maximum",
			want: WriteBetOutOfRange,
		},
		{
			name: "active cap revert",
			msg:  "execution reverted: Too many active predictions",
			want: WriteTooManyActive,
		},
		{
			name: "unknown revert stays generic",
			msg:  "execution reverted: Prediction already resolved",
			want: WriteReverted,
		},
		{
			name: "bare node error stays generic",
			msg:  "nonce too low",
			want: WriteReverted,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			we := classifyWriteError(errors.New(tt.msg))
			if we.Kind != tt.want {
				t.Errorf("kind = %s, want %s", we.Kind, tt.want)
			}
			if we.Err == nil {
				t.Error("original error must be preserved")
			}
		})
	}
}

func TestRevertReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want string
	}{
		{"execution reverted: Bet amount below minimum", "Bet amount below minimum"},
		{"rpc error: execution reverted: Too many active predictions", "Too many active predictions"},
		{"execution reverted", "execution reverted"},
		{"nonce too low", "nonce too low"},
	}
	for _, tt := range tests {
		if got := revertReason(tt.msg); got != tt.want {
			t.Errorf("revertReason(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestAsWriteErrorUnwrapsChain(t *testing.T) {
	t.Parallel()

	inner := classifyWriteError(errors.New("execution reverted: Too many active predictions"))
	wrapped := fmt.Errorf("submit prediction: %w", inner)

	we, ok := AsWriteError(wrapped)
	if !ok {
		t.Fatal("AsWriteError failed on wrapped chain")
	}
	if we.Kind != WriteTooManyActive {
		t.Errorf("kind = %s, want %s", we.Kind, WriteTooManyActive)
	}
}
