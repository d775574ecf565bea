package config

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/hash"
)

// GenesisConfig defines the genesis state every node of a network starts
// from. The genesis id derived from it doubles as the signing prefix, so
// two networks with different genesis configs can never replay each
// other's messages.
type GenesisConfig struct {
	// Time is the RFC3339 timestamp the network launched at.
	Time string `mapstructure:"genesis-time"`
	// ExtraData distinguishes networks launched at the same time.
	ExtraData string `mapstructure:"genesis-extra-data"`
	// Accounts maps bech32 addresses to initial balances.
	Accounts map[string]uint64 `mapstructure:"accounts"`
}

// ID computes the genesis id from time and extra data.
func (g *GenesisConfig) ID() types.Hash32 {
	hasher := hash.GetHasher()
	defer hash.PutHasher(hasher)
	hasher.Write([]byte(g.Time))
	hasher.Write([]byte(g.ExtraData))
	var id types.Hash32
	hasher.Sum(id[:0])
	return id
}

// Validate checks that the genesis config is usable.
func (g *GenesisConfig) Validate() error {
	if _, err := time.Parse(time.RFC3339, g.Time); err != nil {
		return fmt.Errorf("parse genesis time: %w", err)
	}
	for encoded := range g.Accounts {
		if _, err := types.StringToAddress(encoded); err != nil {
			return fmt.Errorf("genesis account %s: %w", encoded, err)
		}
	}
	return nil
}

// InitialAccounts decodes the configured genesis balances, ordered by
// address bytes so replay is deterministic.
func (g *GenesisConfig) InitialAccounts() ([]types.Account, error) {
	rst := make([]types.Account, 0, len(g.Accounts))
	for encoded, balance := range g.Accounts {
		addr, err := types.StringToAddress(encoded)
		if err != nil {
			return nil, fmt.Errorf("genesis account %s: %w", encoded, err)
		}
		rst = append(rst, types.Account{Address: addr, Balance: balance})
	}
	sort.Slice(rst, func(i, j int) bool {
		return bytes.Compare(rst[i].Address[:], rst[j].Address[:]) < 0
	})
	return rst, nil
}

// DefaultGenesisConfig returns the mainnet genesis config.
func DefaultGenesisConfig() GenesisConfig {
	return GenesisConfig{
		Time:      "2024-06-12T18:00:00Z",
		ExtraData: "mainnet",
		Accounts:  map[string]uint64{},
	}
}

// DefaultTestGenesisConfig returns a genesis config for tests.
func DefaultTestGenesisConfig() GenesisConfig {
	return GenesisConfig{
		Time:      "2024-01-01T00:00:00Z",
		ExtraData: "test",
		Accounts:  map[string]uint64{},
	}
}
