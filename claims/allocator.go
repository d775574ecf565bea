// Package claims manages the claim registry driving block production
// eligibility. Claims are allocated deterministically from committed chain
// state so every honest node derives the same registry.
package claims

import (
	"encoding/binary"
	"math/rand"

	"github.com/seehuhn/mt19937"

	"github.com/homestead-network/go-homestead/common/types"
)

// weightScale converts the inverse claim count into an integer weight.
const weightScale = 1 << 16

// Candidate is an address competing for a claim, together with the number
// of claims it was ever allocated.
type Candidate struct {
	Address types.Address
	Claims  uint64
}

// Allocator picks claim recipients for a target height. Implementations
// must be pure functions of their arguments: allocation replays on every
// node and any nondeterminism forks the registry.
type Allocator interface {
	Pick(seed types.Hash32, height types.Height, candidates []Candidate, n int) []types.Address
}

// WeightedAllocator picks recipients with probability inversely
// proportional to the number of claims they already accumulated, favoring
// addresses over identities when stake concentrates.
type WeightedAllocator struct{}

// NewWeightedAllocator creates a WeightedAllocator.
func NewWeightedAllocator() *WeightedAllocator {
	return &WeightedAllocator{}
}

// Pick selects up to n distinct recipients. Candidates must arrive in a
// canonical order (sorted by address) for the draw to replay.
func (WeightedAllocator) Pick(seed types.Hash32, height types.Height, candidates []Candidate, n int) []types.Address {
	if len(candidates) == 0 || n == 0 {
		return nil
	}
	rng := rand.New(newSource(seed, height))
	pool := make([]Candidate, len(candidates))
	copy(pool, candidates)
	if n > len(pool) {
		n = len(pool)
	}
	picked := make([]types.Address, 0, n)
	for len(picked) < n {
		total := uint64(0)
		for _, c := range pool {
			total += weight(c.Claims)
		}
		draw := uint64(rng.Int63n(int64(total)))
		idx := 0
		for i, c := range pool {
			w := weight(c.Claims)
			if draw < w {
				idx = i
				break
			}
			draw -= w
		}
		picked = append(picked, pool[idx].Address)
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return picked
}

func weight(claims uint64) uint64 {
	if w := weightScale / (claims + 1); w > 0 {
		return w
	}
	return 1
}

// newSource seeds a mersenne twister from the allocation seed and target
// height. The full 32 byte seed is folded in so distinct parent blocks
// produce distinct draws.
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
