package claims

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

func newClaim(owner string, height types.Height) *types.Claim {
	addr := types.GenerateAddress([]byte(owner))
	return &types.Claim{
		ID:     types.CalcClaimID(types.CalcHash32([]byte("seed")), height, addr),
		Owner:  addr,
		Height: height,
		State:  types.ClaimAvailable,
	}
}

func TestAddGet(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	claim := newClaim("alice", 10)
	require.NoError(t, Add(db, claim))

	got, err := Get(db, claim.ID)
	require.NoError(t, err)
	require.Equal(t, *claim, got)

	_, err = Get(db, types.ClaimID(types.CalcHash32([]byte("unknown"))))
	require.ErrorIs(t, err, sql.ErrNotFound)

	require.ErrorIs(t, Add(db, claim), sql.ErrObjectExists)
}

func TestGetByOwner(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	claim := newClaim("alice", 10)
	require.NoError(t, Add(db, claim))
	require.NoError(t, Add(db, newClaim("bob", 10)))

	got, err := GetByOwner(db, claim.Owner, 10)
	require.NoError(t, err)
	require.Equal(t, claim.ID, got.ID)

	_, err = GetByOwner(db, claim.Owner, 11)
	require.ErrorIs(t, err, sql.ErrNotFound)
}

func TestUpdateStateCAS(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	claim := newClaim("alice", 10)
	require.NoError(t, Add(db, claim))

	rows, err := UpdateState(db, claim.ID, types.ClaimAvailable, types.ClaimClaimed)
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	// second transition must not apply
	rows, err = UpdateState(db, claim.ID, types.ClaimAvailable, types.ClaimClaimed)
	require.NoError(t, err)
	require.Equal(t, 0, rows)

	got, err := Get(db, claim.ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimClaimed, got.State)
}

func TestPromoteCounts(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	for _, height := range []types.Height{2, 3, 5} {
		claim := newClaim("alice", height)
		claim.State = types.ClaimPending
		require.NoError(t, Add(db, claim))
	}

	promoted, err := Promote(db, 3)
	require.NoError(t, err)
	require.Equal(t, 2, promoted)

	// already promoted claims are not counted again
	promoted, err = Promote(db, 3)
	require.NoError(t, err)
	require.Zero(t, promoted)

	byHeight, err := GetByHeight(db, 5)
	require.NoError(t, err)
	require.Len(t, byHeight, 1)
	require.Equal(t, types.ClaimPending, byHeight[0].State)
}

func TestExpireBefore(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	old := newClaim("alice", 3)
	used := newClaim("bob", 4)
	used.State = types.ClaimClaimed
	current := newClaim("carol", 10)
	require.NoError(t, Add(db, old))
	require.NoError(t, Add(db, used))
	require.NoError(t, Add(db, current))

	expired, err := ExpireBefore(db, 10)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := Get(db, old.ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimExpired, got.State)

	// claimed claims are terminal and not swept
	got, err = Get(db, used.ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimClaimed, got.State)

	got, err = Get(db, current.ID)
	require.NoError(t, err)
	require.Equal(t, types.ClaimAvailable, got.State)
}

func TestCountByOwner(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	alice := types.GenerateAddress([]byte("alice"))
	require.NoError(t, Add(db, newClaim("alice", 1)))
	require.NoError(t, Add(db, newClaim("alice", 2)))
	require.NoError(t, Add(db, newClaim("bob", 2)))

	count, err := CountByOwner(db, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}
