package api

import (
	"time"
)

// DashboardEvent is the wrapper for all events sent to the dashboard
type DashboardEvent struct {
	Type      string      `json:"type"`      // "snapshot", "initialized", "reconciled", "submitted", "resolved", "invalidated"
	Timestamp time.Time   `json:"timestamp"` // Event time
	Data      interface{} `json:"data"`      // Event-specific payload
}

// ActionResponse acknowledges an accepted write action.
type ActionResponse struct {
	TxHash string `json:"tx_hash"`
}

// ErrorResponse carries a refused or failed action back to the client.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"` // precondition or revert classification
}
