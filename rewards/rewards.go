// Package rewards computes the block production subsidy. The draw is a pure
// function of the parent block hash and the block height, so every node
// credits the producer identically.
package rewards

import (
	"encoding/binary"
	"math/rand"

	"github.com/seehuhn/mt19937"

	"github.com/homestead-network/go-homestead/common/types"
)

// Config for the reward schedule.
type Config struct {
	// GenesisReward is minted into the genesis block.
	GenesisReward uint64 `mapstructure:"genesis-reward"`
	// BlocksPerEpoch sets the decay period of the rare categories.
	BlocksPerEpoch uint64 `mapstructure:"blocks-per-epoch"`
	// FinalEpoch is the epoch after which only baseline categories remain.
	FinalEpoch uint64 `mapstructure:"final-epoch"`
}

// DefaultConfig returns the mainnet schedule.
func DefaultConfig() Config {
	return Config{
		GenesisReward:  200_000_000,
		BlocksPerEpoch: 16_000_000,
		FinalEpoch:     300,
	}
}

// category is a subsidy bracket. Rare brackets pay more and thin out as
// epochs pass until only flakes and grains remain.
type category struct {
	name     string
	min, max uint64
	weight   uint64
	decays   bool
}

var categories = []category{
	{name: "flake", min: 1, max: 8, weight: 600_000},
	{name: "grain", min: 8, max: 64, weight: 390_000},
	{name: "nugget", min: 64, max: 512, weight: 9_000, decays: true},
	{name: "vein", min: 512, max: 4_096, weight: 900, decays: true},
	{name: "motherlode", min: 4_096, max: 32_768, weight: 100, decays: true},
}

// Schedule draws block rewards.
type Schedule struct {
	cfg Config
}

// NewSchedule creates a Schedule.
func NewSchedule(cfg Config) *Schedule {
	return &Schedule{cfg: cfg}
}

// GenesisReward returns the subsidy minted at genesis.
func (s *Schedule) GenesisReward() uint64 {
	return s.cfg.GenesisReward
}

// Epoch of the given height.
func (s *Schedule) Epoch(height types.Height) uint64 {
	return height.Uint64() / s.cfg.BlocksPerEpoch
}

// Reward draws the subsidy for the block at the height, seeded by the
// parent block hash.
func (s *Schedule) Reward(height types.Height, seed types.Hash32) uint64 {
	rng := rand.New(newSource(seed, height))
	epoch := s.Epoch(height)

	total := uint64(0)
	weights := make([]uint64, len(categories))
	for i, c := range categories {
		weights[i] = s.weight(c, epoch)
		total += weights[i]
	}
	draw := uint64(rng.Int63n(int64(total)))
	for i, c := range categories {
		if draw < weights[i] {
			return c.min + uint64(rng.Int63n(int64(c.max-c.min+1)))
		}
		draw -= weights[i]
	}
	// Unreachable, the draw is strictly below the weight sum.
	return categories[0].min
}

// weight of a category at the epoch. Decaying categories thin out linearly
// and disappear at the final epoch.
func (s *Schedule) weight(c category, epoch uint64) uint64 {
	if !c.decays {
		return c.weight
	}
	if epoch >= s.cfg.FinalEpoch {
		return 0
	}
	return c.weight * (s.cfg.FinalEpoch - epoch) / s.cfg.FinalEpoch
}

func newSource(seed types.Hash32, height types.Height) rand.Source {
	mt := mt19937.New()
	key := make([]uint64, 0, 5)
	for i := 0; i < len(seed); i += 8 {
		key = append(key, binary.LittleEndian.Uint64(seed[i:i+8]))
	}
	key = append(key, height.Uint64())
	mt.SeedFromSlice(key)
	return mt
}
