// Package config contains the node configuration definitions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultDataDirName = "homestead"
)

// Config defines the top level configuration for a node.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Genesis    GenesisConfig `mapstructure:"genesis"`
	Consensus  Consensus     `mapstructure:"consensus"`
	Rewards    Rewards       `mapstructure:"rewards"`
	P2P        P2P           `mapstructure:"p2p"`
	Sync       Sync          `mapstructure:"sync"`
	Logging    Logging       `mapstructure:"logging"`
}

// BaseConfig defines the default configuration options for the node.
type BaseConfig struct {
	DataDirParent string `mapstructure:"data-folder"`
	ConfigFile    string `mapstructure:"config"`
	IdentityFile  string `mapstructure:"identity-file"`
	NetworkHRP    string `mapstructure:"network-hrp"`

	CollectMetrics bool `mapstructure:"metrics"`
	MetricsPort    int  `mapstructure:"metrics-port"`
}

// Consensus holds the claim-allocation parameters. They are policy knobs:
// changing them changes which blocks the node accepts, so all peers of one
// network must agree on them.
type Consensus struct {
	// ClaimWindow is how many heights ahead of the head a claim becomes
	// available to its owner. A claim expires unused once the head
	// reaches its target height.
	ClaimWindow uint64 `mapstructure:"claim-window"`
	// ClaimLookahead is how many future heights have allocated claims at
	// any time.
	ClaimLookahead uint64 `mapstructure:"claim-lookahead"`
	// MaxBlockTxs caps the number of transactions drained into one block.
	MaxBlockTxs int `mapstructure:"max-block-txs"`
}

// Rewards holds the block reward schedule parameters.
type Rewards struct {
	// GenesisReward is the amount credited to the genesis account.
	GenesisReward uint64 `mapstructure:"genesis-reward"`
	// BlocksPerEpoch is the length of a reward epoch.
	BlocksPerEpoch uint64 `mapstructure:"blocks-per-epoch"`
	// FinalEpoch is the epoch after which only base rewards are drawn.
	FinalEpoch uint64 `mapstructure:"final-epoch"`
}

// P2P holds the peer networking parameters.
type P2P struct {
	Listen string `mapstructure:"listen"`
	// Bootnodes are multiaddrs of well-known peers to connect to first,
	// e.g. /ip4/10.0.0.1/tcp/7513/p2p/<id>.
	Bootnodes []string `mapstructure:"bootnodes"`
	// MinPeers is how many bootnodes must be reachable for startup to
	// succeed, capped by the number of configured bootnodes.
	MinPeers int `mapstructure:"min-peers"`
}

// Sync holds the state synchronization parameters.
type Sync struct {
	// Interval between sync attempts while out of sync.
	Interval time.Duration `mapstructure:"sync-interval"`
	// RequestTimeout bounds a whole sync session.
	RequestTimeout time.Duration `mapstructure:"sync-request-timeout"`
	// ChunkSize is the payload size the responder slices state into.
	ChunkSize int `mapstructure:"sync-chunk-size"`
	// MaxBufferedChunks bounds how many out-of-order chunks are held
	// before the session restarts.
	MaxBufferedChunks int `mapstructure:"sync-max-buffered-chunks"`
}

// Logging holds the log level per module.
type Logging struct {
	Level string `mapstructure:"log-level"`
}

// DataDir returns the absolute path to use for the node's data.
func (cfg *Config) DataDir() string {
	return filepath.Join(cfg.DataDirParent, cfg.Genesis.ID().ShortString())
}

// DefaultConfig returns the default configuration for a node.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		BaseConfig: BaseConfig{
			DataDirParent: filepath.Join(home, defaultDataDirName),
			IdentityFile:  "identity.key",
			NetworkHRP:    "hs",
			MetricsPort:   9090,
		},
		Genesis: DefaultGenesisConfig(),
		Consensus: Consensus{
			ClaimWindow:    8,
			ClaimLookahead: 4,
			MaxBlockTxs:    1000,
		},
		Rewards: Rewards{
			GenesisReward:  200_000_000,
			BlocksPerEpoch: 16_000_000,
			FinalEpoch:     300,
		},
		P2P: P2P{
			Listen:   "/ip4/0.0.0.0/tcp/7513",
			MinPeers: 3,
		},
		Sync: Sync{
			Interval:          10 * time.Second,
			RequestTimeout:    time.Minute,
			ChunkSize:         256 << 10,
			MaxBufferedChunks: 64,
		},
		Logging: Logging{Level: "info"},
	}
}

// DefaultTestConfig returns the default config for tests: a throwaway data
// dir and parameters scaled down for fast runs.
func DefaultTestConfig() Config {
	cfg := DefaultConfig()
	cfg.DataDirParent = os.TempDir()
	cfg.Genesis = DefaultTestGenesisConfig()
	cfg.Sync.Interval = 100 * time.Millisecond
	cfg.Sync.RequestTimeout = 5 * time.Second
	cfg.Rewards.BlocksPerEpoch = 100
	cfg.Rewards.FinalEpoch = 3
	return cfg
}

// LoadConfig loads config from the file at path into the provided config
// struct, leaving defaults in place for unset keys.
func LoadConfig(path string, vip *viper.Viper, cfg *Config) error {
	vip.SetConfigFile(path)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("can't load config at %s: %w", path, err)
	}
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)),
	}
	if err := vip.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
