package wallet

import (
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pricepredict/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Well-known hardhat dev key, account #0.
const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestLoadKeyFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{"bare hex", devKey},
		{"0x prefix stripped", "0x" + devKey},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			key, err := loadKey(config.WalletConfig{PrivateKey: tt.key})
			if err != nil {
				t.Fatalf("loadKey: %v", err)
			}
			if key == nil {
				t.Fatal("loadKey returned nil key")
			}
		})
	}
}

func TestLoadKeyFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("0x"+devKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	key, err := loadKey(config.WalletConfig{KeyFile: path})
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}
	if key == nil {
		t.Fatal("loadKey returned nil key")
	}
}

func TestLoadKeyErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.WalletConfig
	}{
		{"empty config", config.WalletConfig{}},
		{"garbage hex", config.WalletConfig{PrivateKey: "not-a-key"}},
		{"missing file", config.WalletConfig{KeyFile: "/nonexistent/key"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := loadKey(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewDerivesAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Wallet:  config.WalletConfig{PrivateKey: devKey},
		Network: config.NetworkConfig{RPCURL: "http://127.0.0.1:8545", ChainID: 31337},
	}
	w, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	accounts := w.Accounts()
	if len(accounts) != 1 {
		t.Fatalf("accounts = %d, want 1", len(accounts))
	}
	if accounts[0].Hex() != devAddress {
		t.Errorf("address = %s, want %s", accounts[0].Hex(), devAddress)
	}
}

func TestConnectionSignsForItsChain(t *testing.T) {
	t.Parallel()

	key, err := loadKey(config.WalletConfig{PrivateKey: devKey})
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}
	conn := &Connection{
		Address: common.HexToAddress(devAddress),
		ChainID: big.NewInt(31337),
		key:     key,
	}

	opts, err := conn.TransactOpts()
	if err != nil {
		t.Fatalf("TransactOpts: %v", err)
	}
	if opts.From != conn.Address {
		t.Errorf("opts.From = %s, want %s", opts.From.Hex(), conn.Address.Hex())
	}
}
