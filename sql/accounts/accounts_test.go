package accounts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

func TestGetUpdate(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	addr := types.GenerateAddress([]byte("alice"))
	_, err := Get(db, addr)
	require.ErrorIs(t, err, sql.ErrNotFound)

	account := &types.Account{Address: addr, Balance: 50, Nonce: 0, Height: 1}
	require.NoError(t, Update(db, account))

	got, err := Get(db, addr)
	require.NoError(t, err)
	require.Equal(t, *account, got)

	account.Balance = 40
	account.Nonce = 1
	account.Height = 2
	require.NoError(t, Update(db, account))

	got, err = Get(db, addr)
	require.NoError(t, err)
	require.Equal(t, *account, got)
}

func TestAllOrdered(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	for _, seed := range []string{"carol", "alice", "bob"} {
		require.NoError(t, Update(db, &types.Account{
			Address: types.GenerateAddress([]byte(seed)),
			Balance: 10,
		}))
	}

	all, err := All(db)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		require.Negative(t, bytes.Compare(all[i-1].Address[:], all[i].Address[:]))
	}
}

func TestTotal(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))

	total, err := Total(db)
	require.NoError(t, err)
	require.Zero(t, total)

	require.NoError(t, Update(db, &types.Account{Address: types.GenerateAddress([]byte("a")), Balance: 30}))
	require.NoError(t, Update(db, &types.Account{Address: types.GenerateAddress([]byte("b")), Balance: 12}))

	total, err = Total(db)
	require.NoError(t, err)
	require.Equal(t, uint64(42), total)
}
