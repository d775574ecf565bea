package claims

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/sql"
	sqlclaims "github.com/homestead-network/go-homestead/sql/claims"
)

func testDB(t *testing.T, balances map[byte]uint64) *sql.Database {
	t.Helper()
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))
	for b, balance := range balances {
		require.NoError(t, ledger.Credit(db, types.Address{b}, balance))
	}
	return db
}

func seed(b byte) types.Hash32 {
	var h types.Hash32
	h[0] = b
	return h
}

func TestAllocatorDeterminism(t *testing.T) {
	candidates := []Candidate{
		{Address: types.Address{1}, Claims: 0},
		{Address: types.Address{2}, Claims: 3},
		{Address: types.Address{3}, Claims: 10},
	}
	alloc := NewWeightedAllocator()
	first := alloc.Pick(seed(7), 5, candidates, 2)
	second := alloc.Pick(seed(7), 5, candidates, 2)
	require.Equal(t, first, second)
	require.Len(t, first, 2)
	require.NotEqual(t, first[0], first[1])

	// A different seed or height changes the draw eventually; at minimum
	// it must not panic and must stay within the candidate set.
	other := alloc.Pick(seed(8), 6, candidates, 3)
	require.Len(t, other, 3)
}

func TestAllocatorWeights(t *testing.T) {
	// With enough draws the unburdened address must win more often than
	// the one holding many claims.
	light, heavy := types.Address{1}, types.Address{2}
	candidates := []Candidate{
		{Address: light, Claims: 0},
		{Address: heavy, Claims: 15},
	}
	alloc := NewWeightedAllocator()
	wins := 0
	for i := byte(0); i < 100; i++ {
		winner := alloc.Pick(seed(i), 1, candidates, 1)
		require.Len(t, winner, 1)
		if winner[0] == light {
			wins++
		}
	}
	require.Greater(t, wins, 75)
}

func TestRegistryLifecycle(t *testing.T) {
	db := testDB(t, map[byte]uint64{1: 100, 2: 100, 3: 100})
	registry := New(Config{Window: 8, Lookahead: 2, PerHeight: 2})

	require.NoError(t, registry.OnBlockApplied(db, 0, seed(1)))
	for height := types.Height(1); height <= 2; height++ {
		allocated, err := sqlclaims.GetByHeight(db, height)
		require.NoError(t, err)
		require.Len(t, allocated, 2)
		for _, claim := range allocated {
			require.Equal(t, types.ClaimAvailable, claim.State)
			require.Equal(t, types.CalcClaimID(seed(1), height, claim.Owner), claim.ID)
		}
	}

	// Accepting height 1 consumes one claim, expires the backup and
	// extends allocations to height 3.
	allocated, err := sqlclaims.GetByHeight(db, 1)
	require.NoError(t, err)
	used, backup := allocated[0], allocated[1]
	require.NoError(t, registry.MarkClaimed(db, used.ID))
	require.NoError(t, registry.OnBlockApplied(db, 1, seed(2)))

	claim, err := sqlclaims.Get(db, used.ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimClaimed, claim.State)
	claim, err = sqlclaims.Get(db, backup.ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimExpired, claim.State)

	next, err := sqlclaims.GetByHeight(db, 3)
	require.NoError(t, err)
	require.Len(t, next, 2)
}

func TestRegistrySingleUse(t *testing.T) {
	db := testDB(t, map[byte]uint64{1: 100})
	registry := New(Config{Window: 4, Lookahead: 1, PerHeight: 1})
	require.NoError(t, registry.OnBlockApplied(db, 0, seed(1)))

	allocated, err := sqlclaims.GetByHeight(db, 1)
	require.NoError(t, err)
	require.Len(t, allocated, 1)
	id := allocated[0].ID

	require.NoError(t, registry.MarkClaimed(db, id))
	require.ErrorIs(t, registry.MarkClaimed(db, id), ErrClaimAlreadyUsed)
	// The block transaction path tolerates the pre-marked claim.
	require.NoError(t, registry.Consume(db, id))
	require.ErrorIs(t, registry.MarkClaimed(db, types.ClaimID{9}), ErrClaimNotFound)
}

func TestRegistryEligibility(t *testing.T) {
	db := testDB(t, map[byte]uint64{1: 100})
	registry := New(Config{Window: 4, Lookahead: 1, PerHeight: 1})
	require.NoError(t, registry.OnBlockApplied(db, 0, seed(1)))

	allocated, err := sqlclaims.GetByHeight(db, 1)
	require.NoError(t, err)
	owner := allocated[0].Owner

	claim, err := registry.Eligible(db, owner, 1)
	require.NoError(t, err)
	require.Equal(t, allocated[0].ID, claim.ID)
	require.NoError(t, registry.Validate(db, claim.ID, owner, 1))

	_, err = registry.Eligible(db, types.Address{9}, 1)
	require.ErrorIs(t, err, ErrClaimNotEligible)
	require.ErrorIs(t, registry.Validate(db, claim.ID, types.Address{9}, 1), ErrClaimNotEligible)
	require.ErrorIs(t, registry.Validate(db, claim.ID, owner, 2), ErrClaimNotEligible)

	require.NoError(t, registry.MarkClaimed(db, claim.ID))
	_, err = registry.Eligible(db, owner, 1)
	require.ErrorIs(t, err, ErrClaimNotEligible)
}

func TestRegistryPendingBeyondWindow(t *testing.T) {
	db := testDB(t, map[byte]uint64{1: 100})
	registry := New(Config{Window: 1, Lookahead: 3, PerHeight: 1})
	require.NoError(t, registry.OnBlockApplied(db, 0, seed(1)))

	near, err := sqlclaims.GetByHeight(db, 1)
	require.NoError(t, err)
	require.Equal(t, types.ClaimAvailable, near[0].State)
	far, err := sqlclaims.GetByHeight(db, 2)
	require.NoError(t, err)
	require.Equal(t, types.ClaimPending, far[0].State)

	// The pending claim becomes available as the head approaches.
	require.NoError(t, registry.MarkClaimed(db, near[0].ID))
	require.NoError(t, registry.OnBlockApplied(db, 1, seed(2)))
	promoted, err := sqlclaims.Get(db, far[0].ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimAvailable, promoted.State)
	farther, err := sqlclaims.GetByHeight(db, 3)
	require.NoError(t, err)
	require.Equal(t, types.ClaimPending, farther[0].State)
}
