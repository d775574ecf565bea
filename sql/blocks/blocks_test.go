package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

func newBlock(height types.Height, prev types.Hash32) *types.Block {
	return &types.Block{
		Header: types.BlockHeader{
			Height:   height,
			PrevHash: prev,
			Producer: types.GenerateAddress([]byte("producer")),
		},
	}
}

func TestAddGetHead(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	_, err := Head(db)
	require.ErrorIs(t, err, sql.ErrNotFound)

	genesis := newBlock(0, types.EmptyHash32)
	require.NoError(t, Add(db, genesis))
	next := newBlock(1, genesis.ID().Hash32())
	require.NoError(t, Add(db, next))

	head, err := Head(db)
	require.NoError(t, err)
	require.Equal(t, types.Height(1), head)

	got, err := Get(db, 1)
	require.NoError(t, err)
	require.Equal(t, next.ID(), got.ID())

	_, err = Get(db, 2)
	require.ErrorIs(t, err, sql.ErrNotFound)
}

func TestHeightOccupied(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	require.NoError(t, Add(db, newBlock(7, types.CalcHash32([]byte("a")))))
	err := Add(db, newBlock(7, types.CalcHash32([]byte("b"))))
	require.ErrorIs(t, err, sql.ErrObjectExists)
}

func TestSince(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	prev := types.EmptyHash32
	for h := types.Height(0); h < 5; h++ {
		block := newBlock(h, prev)
		require.NoError(t, Add(db, block))
		prev = block.ID().Hash32()
	}

	since, err := Since(db, 2)
	require.NoError(t, err)
	require.Len(t, since, 3)
	for i, block := range since {
		require.Equal(t, types.Height(2+i), block.Header.Height)
	}
}
