package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Artifact is a compiled contract in hardhat artifact form.
type Artifact struct {
	ContractName string          `json:"contractName"`
	RawABI       json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`

	parsed abi.ABI
	code   []byte
}

// LoadArtifact reads <dir>/<name>.json and prepares it for deployment.
func LoadArtifact(dir, name string) (*Artifact, error) {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact %s: %w", name, err)
	}
	if len(a.RawABI) == 0 || a.Bytecode == "" {
		return nil, fmt.Errorf("artifact %s missing abi or bytecode", name)
	}

	a.parsed, err = abi.JSON(bytes.NewReader(a.RawABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi %s: %w", name, err)
	}
	a.code, err = hexutil.Decode(strings.TrimSpace(a.Bytecode))
	if err != nil {
		return nil, fmt.Errorf("decode bytecode %s: %w", name, err)
	}
	return &a, nil
}

// ABI returns the parsed contract interface.
func (a *Artifact) ABI() abi.ABI { return a.parsed }

// Deploy sends the creation transaction and waits for it to mine.
func (a *Artifact) Deploy(ctx context.Context, opts *bind.TransactOpts, backend bind.ContractBackend, args ...interface{}) (common.Address, *ethtypes.Transaction, error) {
	opts.Context = ctx
	addr, tx, _, err := bind.DeployContract(opts, a.parsed, a.code, backend, args...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("deploy %s: %w", a.ContractName, err)
	}

	deployBackend, ok := backend.(bind.DeployBackend)
	if !ok {
		return addr, tx, nil
	}
	receipt, err := bind.WaitMined(ctx, deployBackend, tx)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("wait deploy %s: %w", a.ContractName, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return common.Address{}, nil, fmt.Errorf("deploy %s: creation reverted", a.ContractName)
	}
	return addr, tx, nil
}
