// Package config defines all configuration for the prediction client.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via PREDICT_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Network   NetworkConfig   `mapstructure:"network"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// NetworkConfig identifies the chain and the prediction contract.
// ContractAddress may be left empty when DeploymentFile points at a
// deployment record written by the deploy command.
type NetworkConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         int64  `mapstructure:"chain_id"`
	ContractAddress string `mapstructure:"contract_address"`
	DeploymentFile  string `mapstructure:"deployment_file"`
}

// WalletConfig holds the signing key for payable calls. The key is normally
// supplied via PREDICT_PRIVATE_KEY rather than the YAML file; KeyFile is an
// alternative source that can be re-read on SIGHUP to switch accounts.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	KeyFile    string `mapstructure:"key_file"`
}

// TrackerConfig tunes the prediction session tracker.
//
//   - PollInterval: reconciliation cadence against the ledger.
//   - MaxBatch: upper bound on entries in one batch submission.
//   - ChainCheckInterval: how often the wallet re-reads the endpoint's
//     chain id to detect a network switch.
type TrackerConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxBatch           int           `mapstructure:"max_batch"`
	ChainCheckInterval time.Duration `mapstructure:"chain_check_interval"`
}

// DashboardConfig controls the local web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FeedsConfig controls the feedkeeper, which pushes spot prices from a
// public REST API into the mock aggregator feeds on local networks.
type FeedsConfig struct {
	SpotBaseURL    string            `mapstructure:"spot_base_url"`
	UpdateInterval time.Duration     `mapstructure:"update_interval"`
	Symbols        map[string]string `mapstructure:"symbols"` // feed name -> spot API id
}

// ResolverConfig controls the auto-resolver service.
// Schedule uses cron syntax, e.g. "@every 30s".
type ResolverConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// DeployConfig seeds the catalog at deployment time and locates the
// compiled contract artifacts (hardhat artifact JSON: abi + bytecode).
type DeployConfig struct {
	ArtifactsDir    string                 `mapstructure:"artifacts_dir"`
	RecordFile      string                 `mapstructure:"record_file"`
	Assets          []DeployAsset          `mapstructure:"assets"`
	TimeWindows     []DeployTimeWindow     `mapstructure:"time_windows"`
	PredictionTypes []DeployPredictionType `mapstructure:"prediction_types"`
}

// DeployAsset seeds one asset. InitialPrice is in human units and is
// scaled to Decimals when the mock feed is deployed.
type DeployAsset struct {
	Symbol       string `mapstructure:"symbol"`
	Decimals     uint8  `mapstructure:"decimals"`
	InitialPrice string `mapstructure:"initial_price"`
}

// DeployTimeWindow seeds one time window.
type DeployTimeWindow struct {
	Name       string        `mapstructure:"name"`
	Duration   time.Duration `mapstructure:"duration"`
	Multiplier uint64        `mapstructure:"multiplier"` // scaled by 10000
}

// DeployPredictionType seeds one prediction type. Bet bounds are in ether.
type DeployPredictionType struct {
	Name       string `mapstructure:"name"`
	MinBet     string `mapstructure:"min_bet"`
	MaxBet     string `mapstructure:"max_bet"`
	Multiplier uint64 `mapstructure:"multiplier"` // scaled by 10000
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NewLogger builds the process logger from the logging section. Every
// command uses this so log shape is uniform across the daemon and the
// sidecar tools.
func NewLogger(cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config from a YAML file with env var overrides.
// The private key uses PREDICT_PRIVATE_KEY and never belongs in the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PREDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tracker.poll_interval", 10*time.Second)
	v.SetDefault("tracker.max_batch", 10)
	v.SetDefault("tracker.chain_check_interval", 15*time.Second)
	v.SetDefault("resolver.schedule", "@every 30s")
	v.SetDefault("feeds.update_interval", 30*time.Second)
	v.SetDefault("deploy.record_file", "deployment.json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("PREDICT_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if url := os.Getenv("PREDICT_RPC_URL"); url != "" {
		cfg.Network.RPCURL = url
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Network.RPCURL == "" {
		return fmt.Errorf("network.rpc_url is required (set PREDICT_RPC_URL)")
	}
	if c.Network.ChainID == 0 {
		return fmt.Errorf("network.chain_id is required")
	}
	if c.Network.ContractAddress == "" && c.Network.DeploymentFile == "" {
		return fmt.Errorf("one of network.contract_address or network.deployment_file is required")
	}
	if c.Wallet.PrivateKey == "" && c.Wallet.KeyFile == "" {
		return fmt.Errorf("wallet key is required (set PREDICT_PRIVATE_KEY or wallet.key_file)")
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker.poll_interval must be > 0")
	}
	if c.Tracker.MaxBatch <= 0 || c.Tracker.MaxBatch > 10 {
		return fmt.Errorf("tracker.max_batch must be in [1,10]")
	}
	if c.Dashboard.Enabled && c.Dashboard.Port <= 0 {
		return fmt.Errorf("dashboard.port must be > 0 when the dashboard is enabled")
	}
	return nil
}
