// Package wallet provides the identity and connection layer for the client.
//
// A Provider owns the signing key, knows which chain the RPC endpoint is on,
// and notifies subscribers when the account or chain changes. The tracker
// receives the Provider as an explicit capability, so tests substitute a
// fake instead of reaching for ambient global state.
//
// KeyWallet is the production Provider: a single private key loaded from the
// environment or a key file. Chain changes are detected by re-reading the
// endpoint's chain id on a ticker (local dev nodes are routinely restarted
// as a different chain), and account changes happen when Reload picks up a
// different key, which the daemon wires to SIGHUP.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"pricepredict/internal/config"
)

// EventKind distinguishes the two invalidation triggers.
type EventKind string

const (
	EventAccountChanged EventKind = "account_changed"
	EventChainChanged   EventKind = "chain_changed"
)

// Event is an identity-layer notification. Address is the new active
// account (zero on disconnect); ChainID is the endpoint's new chain.
type Event struct {
	Kind    EventKind
	Address common.Address
	ChainID *big.Int
}

// Connection is a live wallet/chain binding. No payable call may be issued
// without one, and a fresh Connection is required after any account or
// chain change: cached state is never reused across connections.
type Connection struct {
	Address common.Address
	ChainID *big.Int

	key *ecdsa.PrivateKey
}

// SignTx signs a transaction for this connection's chain.
func (c *Connection) SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(c.ChainID), c.key)
}

// TransactOpts returns keyed transact options for contract deployment.
func (c *Connection) TransactOpts() (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(c.key, c.ChainID)
}

// Provider is the identity/connection capability consumed by the tracker.
type Provider interface {
	// Connect establishes (or re-establishes) a Connection for the
	// currently active account on the endpoint's current chain.
	Connect(ctx context.Context) (*Connection, error)

	// Accounts lists the identities this provider can sign for.
	Accounts() []common.Address

	// Events delivers account-changed and chain-changed notifications
	// for the lifetime of the provider.
	Events() <-chan Event

	Close()
}

// KeyWallet implements Provider over a single local private key.
type KeyWallet struct {
	walletCfg     config.WalletConfig
	rpcURL        string
	checkInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	client  *ethclient.Client

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// New creates a KeyWallet from config. The key is loaded immediately so a
// bad key fails at startup, not at first signing.
func New(cfg config.Config, logger *slog.Logger) (*KeyWallet, error) {
	key, err := loadKey(cfg.Wallet)
	if err != nil {
		return nil, err
	}

	return &KeyWallet{
		walletCfg:     cfg.Wallet,
		rpcURL:        cfg.Network.RPCURL,
		checkInterval: cfg.Tracker.ChainCheckInterval,
		logger:        logger.With("component", "wallet"),
		key:           key,
		address:       crypto.PubkeyToAddress(key.PublicKey),
		events:        make(chan Event, 8),
		done:          make(chan struct{}),
	}, nil
}

// loadKey reads the private key from config or the key file, stripping an
// optional 0x prefix.
func loadKey(cfg config.WalletConfig) (*ecdsa.PrivateKey, error) {
	keyHex := cfg.PrivateKey
	if keyHex == "" && cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		keyHex = strings.TrimSpace(string(data))
	}
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Connect dials the RPC endpoint (first call only), reads its chain id, and
// returns a fresh Connection. The chain watcher starts with the first
// successful connect.
func (w *KeyWallet) Connect(ctx context.Context) (*Connection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client == nil {
		client, err := ethclient.DialContext(ctx, w.rpcURL)
		if err != nil {
			return nil, fmt.Errorf("dial rpc: %w", err)
		}
		w.client = client
	}

	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	w.chainID = chainID

	w.once.Do(func() {
		go w.watchChain()
	})

	w.logger.Info("wallet connected",
		"address", w.address.Hex(),
		"chain_id", chainID,
	)

	return &Connection{
		Address: w.address,
		ChainID: new(big.Int).Set(chainID),
		key:     w.key,
	}, nil
}

// Accounts returns the single active account.
func (w *KeyWallet) Accounts() []common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return []common.Address{w.address}
}

// Events returns the notification stream.
func (w *KeyWallet) Events() <-chan Event {
	return w.events
}

// Reload re-reads the key source. If the key now derives a different
// address, the wallet switches to it and emits AccountChanged. The daemon
// calls this on SIGHUP.
func (w *KeyWallet) Reload() error {
	key, err := loadKey(w.walletCfg)
	if err != nil {
		return err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	w.mu.Lock()
	changed := addr != w.address
	if changed {
		w.key = key
		w.address = addr
	}
	chainID := w.chainID
	w.mu.Unlock()

	if changed {
		w.logger.Info("active account changed", "address", addr.Hex())
		w.emit(Event{Kind: EventAccountChanged, Address: addr, ChainID: chainID})
	}
	return nil
}

// Close stops the chain watcher and releases the RPC client.
func (w *KeyWallet) Close() {
	close(w.done)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}

// watchChain polls the endpoint's chain id and emits ChainChanged when it
// moves. A transient RPC failure is not a chain change; it is logged and
// the next tick retries.
func (w *KeyWallet) watchChain() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.checkInterval)
			w.mu.Lock()
			client := w.client
			w.mu.Unlock()
			if client == nil {
				cancel()
				return
			}

			chainID, err := client.ChainID(ctx)
			cancel()
			if err != nil {
				w.logger.Warn("chain id check failed", "error", err)
				continue
			}

			w.mu.Lock()
			moved := w.chainID != nil && chainID.Cmp(w.chainID) != 0
			if moved {
				w.chainID = chainID
			}
			addr := w.address
			w.mu.Unlock()

			if moved {
				w.logger.Warn("endpoint chain changed", "chain_id", chainID)
				w.emit(Event{Kind: EventChainChanged, Address: addr, ChainID: chainID})
			}
		}
	}
}

// emit delivers an event without blocking; if the subscriber is behind, the
// stale event is dropped in favor of the new one.
func (w *KeyWallet) emit(evt Event) {
	select {
	case w.events <- evt:
	default:
		select {
		case <-w.events:
		default:
		}
		w.events <- evt
	}
}
