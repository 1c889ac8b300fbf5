// Package deploy handles contract deployment: loading compiled
// artifacts, seeding the catalog, and persisting the deployment record
// the other commands read to find the contract.
//
// The record is written atomically (write to .tmp, then rename) so a
// crash mid-deploy never leaves a corrupt file behind.
package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is the persisted deployment descriptor. MockFeeds is only
// populated on local networks where the deployer also creates mock
// aggregators; public networks use real oracle feeds.
type Record struct {
	ContractName    string            `json:"contractName"`
	Network         string            `json:"network"`
	ChainID         int64             `json:"chainId"`
	ContractAddress string            `json:"contractAddress"`
	DeployedAt      time.Time         `json:"deployedAt"`
	MockFeeds       map[string]string `json:"mockFeeds,omitempty"` // symbol -> aggregator address
}

// Validate checks the fields every consumer depends on.
func (r *Record) Validate() error {
	if r.ContractAddress == "" {
		return fmt.Errorf("deployment record missing contract address")
	}
	if !common.IsHexAddress(r.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", r.ContractAddress)
	}
	if r.ChainID == 0 {
		return fmt.Errorf("deployment record missing chain id")
	}
	for symbol, addr := range r.MockFeeds {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid feed address %q for %s", addr, symbol)
		}
	}
	return nil
}

// Address returns the contract address in checksummed form.
func (r *Record) Address() common.Address {
	return common.HexToAddress(r.ContractAddress)
}

// FeedAddresses returns the mock aggregator set keyed by symbol.
func (r *Record) FeedAddresses() map[string]common.Address {
	out := make(map[string]common.Address, len(r.MockFeeds))
	for symbol, addr := range r.MockFeeds {
		out[symbol] = common.HexToAddress(addr)
	}
	return out
}

// Save atomically writes the record to path, creating parent
// directories as needed.
func Save(path string, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create record dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads and validates a deployment record.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment record: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal deployment record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
